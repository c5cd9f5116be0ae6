package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/tenant"
)

// OrderService implements spec §6's create_sales_order/add_item/
// confirm_order/cancel_order operation group. An Order accumulates lines
// while DRAFT, is credit- and stock-checked as a whole at ConfirmOrder
// (spec §4.10: confirmation, not invoice posting, is where credit control
// actually lives), and only ever becomes an Invoice through a separate,
// later call that the invoicing layer drives off a CONFIRMED order.
type OrderService struct {
	Store Store
	Clock clock.Clock
	Log   *zap.Logger
}

func NewOrderService(store Store, clk clock.Clock, log *zap.Logger) *OrderService {
	return &OrderService{Store: store, Clock: clk, Log: log}
}

// CreateSalesOrderInput is the caller-facing request to open a new order.
// Despite the name it covers both SALES and PURCHASE orders (Type picks
// which); lines are added afterward one at a time via AddItem, the same
// incremental-cart shape a point-of-sale or purchase-entry screen uses.
type CreateSalesOrderInput struct {
	CompanyID CompanyID
	PartyID   PartyID
	Type      OrderType
	Date      string
}

// CreateSalesOrder opens a DRAFT order with no lines.
func (svc *OrderService) CreateSalesOrder(ctx context.Context, p tenant.Principal, in CreateSalesOrderInput) (Order, error) {
	if err := requireCapability(p, tenant.CapabilityMaker); err != nil {
		return Order{}, err
	}
	date, err := parseWireDate(in.Date)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:        OrderID(uuid.NewString()),
		CompanyID: in.CompanyID,
		PartyID:   in.PartyID,
		Type:      in.Type,
		Status:    OrderDraft,
		Date:      date,
	}
	if err := svc.Store.InsertOrder(ctx, order); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

// AddItemInput is one line to append to a DRAFT order.
type AddItemInput struct {
	StockItemID StockItemID
	GodownID    GodownID
	Quantity    money.Money
	Rate        money.Money
}

// AddItem appends a line to a DRAFT order. Confirmed, invoiced, or
// cancelled orders reject it outright (spec §4.10 edge case: "an order's
// lines are fixed the moment it leaves DRAFT").
func (svc *OrderService) AddItem(ctx context.Context, p tenant.Principal, company CompanyID, id OrderID, in AddItemInput) (Order, error) {
	if err := requireCapability(p, tenant.CapabilityMaker); err != nil {
		return Order{}, err
	}
	if !in.Quantity.IsPositive() {
		return Order{}, &ValidationError{Violations: []Violation{{Field: "quantity", Message: "must be positive"}}}
	}

	var result Order
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		order, err := s.GetOrderForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order.Status != OrderDraft {
			return ErrCannotModifyPostedVoucher
		}

		item, err := s.GetStockItem(ctx, company, in.StockItemID)
		if err != nil {
			return fmt.Errorf("load stock item: %w", err)
		}
		if err := requireStockItemActive(item); err != nil {
			return err
		}

		order.Lines = append(order.Lines, OrderLine{
			LineNo:      len(order.Lines) + 1,
			StockItemID: in.StockItemID,
			GodownID:    in.GodownID,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
		})
		if err := s.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		result = order
		return nil
	})
	return result, err
}

// ConfirmOrder is the spec §4.10 gate: it locks the order, requires it be
// DRAFT with at least one line, runs credit control for SALES orders
// (checkCreditLimit against the order's Total, the primary enforcement
// point — PostInvoice's own check is defense-in-depth for invoices posted
// without an order), confirms every line has enough FIFO-available stock
// for SALES orders without drawing it (AllocateFIFO is read-only; the
// actual draw happens later when the order is invoiced), and transitions
// the order to CONFIRMED.
func (svc *OrderService) ConfirmOrder(ctx context.Context, p tenant.Principal, company CompanyID, id OrderID) (Order, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Order{}, err
	}

	var result Order
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		order, err := s.GetOrderForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order.Status != OrderDraft {
			return ErrOrderNotConfirmable
		}
		if len(order.Lines) == 0 {
			return ErrEmptyVoucher
		}

		if order.Type == OrderSales {
			party, err := s.GetParty(ctx, company, order.PartyID)
			if err != nil {
				return fmt.Errorf("load party: %w", err)
			}
			if err := checkCreditLimit(ctx, s, party, order.Total()); err != nil {
				return err
			}
			for _, l := range order.Lines {
				availability, err := AllocateFIFO(ctx, s, company, l.StockItemID, l.GodownID, l.Quantity)
				if err != nil {
					return fmt.Errorf("check stock for line %d: %w", l.LineNo, err)
				}
				if !availability.IsSatisfiable {
					return &InsufficientStockError{
						ItemID:    l.StockItemID,
						GodownID:  l.GodownID,
						Requested: l.Quantity.String(),
						Available: l.Quantity.Sub(availability.Shortfall).String(),
					}
				}
			}
		}

		order.Status = OrderConfirmed
		if err := s.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if err := s.AppendAuditLog(ctx, AuditLog{
			ID:         uuid.NewString(),
			CompanyID:  company,
			Actor:      p.UserID,
			ActionType: AuditOrderConfirmed,
			ObjectType: "order",
			ObjectID:   string(id),
			CreatedAt:  svc.Clock.Now(),
		}); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}

		result = order
		return nil
	})
	return result, err
}

// CancelOrder moves a DRAFT or CONFIRMED order to CANCELLED. An INVOICED
// order has already produced accounting entries and stock movements, so
// it can only be undone through ReversalService, not cancellation (spec
// §4.10 edge case).
func (svc *OrderService) CancelOrder(ctx context.Context, p tenant.Principal, company CompanyID, id OrderID, reason string) (Order, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Order{}, err
	}

	var result Order
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		order, err := s.GetOrderForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		switch order.Status {
		case OrderDraft, OrderConfirmed:
			// proceeds below
		case OrderCancelled:
			return ErrOrderAlreadyClosed
		default:
			return ErrOrderAlreadyClosed
		}

		order.Status = OrderCancelled
		order.CancelReason = reason
		if err := s.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if err := s.AppendAuditLog(ctx, AuditLog{
			ID:         uuid.NewString(),
			CompanyID:  company,
			Actor:      p.UserID,
			ActionType: AuditOrderCancelled,
			ObjectType: "order",
			ObjectID:   string(id),
			Changes:    map[string]any{"reason": reason},
			CreatedAt:  svc.Clock.Now(),
		}); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}

		result = order
		return nil
	})
	return result, err
}
