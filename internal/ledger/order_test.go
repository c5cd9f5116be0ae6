package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/store/memory"
	"github.com/ledgercore/core/internal/tenant"
)

func TestConfirmOrderChecksCreditAndStock(t *testing.T) {
	store := memory.New()
	company, _, party, _, _, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	orderSvc := ledger.NewOrderService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	order, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: company,
		PartyID:   party,
		Type:      ledger.OrderSales,
		Date:      "2024-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderDraft, order.Status)

	order, err = orderSvc.AddItem(context.Background(), p, company, order.ID, ledger.AddItemInput{
		StockItemID: item,
		GodownID:    godown,
		Quantity:    money.NewFromFloat(10),
		Rate:        money.NewFromFloat(20),
	})
	require.NoError(t, err)
	assert.True(t, order.Total().Equal(money.NewFromFloat(200)))

	confirmed, err := orderSvc.ConfirmOrder(context.Background(), p, company, order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderConfirmed, confirmed.Status)

	_, err = orderSvc.AddItem(context.Background(), p, company, order.ID, ledger.AddItemInput{
		StockItemID: item,
		GodownID:    godown,
		Quantity:    money.NewFromFloat(1),
		Rate:        money.NewFromFloat(1),
	})
	assert.ErrorIs(t, err, ledger.ErrCannotModifyPostedVoucher)

	_, err = orderSvc.ConfirmOrder(context.Background(), p, company, order.ID)
	assert.ErrorIs(t, err, ledger.ErrOrderNotConfirmable)
}

func TestConfirmOrderOverCreditLimitRejected(t *testing.T) {
	store := memory.New()
	company, _, party, _, _, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	orderSvc := ledger.NewOrderService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	order, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: company,
		PartyID:   party,
		Type:      ledger.OrderSales,
		Date:      "2024-06-01",
	})
	require.NoError(t, err)

	order, err = orderSvc.AddItem(context.Background(), p, company, order.ID, ledger.AddItemInput{
		StockItemID: item,
		GodownID:    godown,
		Quantity:    money.NewFromFloat(50),
		Rate:        money.NewFromFloat(50),
	})
	require.NoError(t, err)

	_, err = orderSvc.ConfirmOrder(context.Background(), p, company, order.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditLimitExceeded)
}

func TestConfirmOrderInsufficientStockRejected(t *testing.T) {
	store := memory.New()
	company, _, party, _, _, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	orderSvc := ledger.NewOrderService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	order, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: company,
		PartyID:   party,
		Type:      ledger.OrderSales,
		Date:      "2024-06-01",
	})
	require.NoError(t, err)

	order, err = orderSvc.AddItem(context.Background(), p, company, order.ID, ledger.AddItemInput{
		StockItemID: item,
		GodownID:    godown,
		Quantity:    money.NewFromFloat(100),
		Rate:        money.NewFromFloat(1),
	})
	require.NoError(t, err)

	var stockErr *ledger.InsufficientStockError
	_, err = orderSvc.ConfirmOrder(context.Background(), p, company, order.ID)
	assert.ErrorAs(t, err, &stockErr)
}

func TestCancelOrderFromDraftAndConfirmed(t *testing.T) {
	store := memory.New()
	company, _, party, _, _, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	orderSvc := ledger.NewOrderService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	draft, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: company, PartyID: party, Type: ledger.OrderSales, Date: "2024-06-01",
	})
	require.NoError(t, err)
	cancelled, err := orderSvc.CancelOrder(context.Background(), p, company, draft.ID, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderCancelled, cancelled.Status)
	assert.Equal(t, "changed mind", cancelled.CancelReason)

	confirmedOrder, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: company, PartyID: party, Type: ledger.OrderSales, Date: "2024-06-01",
	})
	require.NoError(t, err)
	confirmedOrder, err = orderSvc.AddItem(context.Background(), p, company, confirmedOrder.ID, ledger.AddItemInput{
		StockItemID: item, GodownID: godown, Quantity: money.NewFromFloat(5), Rate: money.NewFromFloat(10),
	})
	require.NoError(t, err)
	confirmedOrder, err = orderSvc.ConfirmOrder(context.Background(), p, company, confirmedOrder.ID)
	require.NoError(t, err)

	cancelled, err = orderSvc.CancelOrder(context.Background(), p, company, confirmedOrder.ID, "party backed out")
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderCancelled, cancelled.Status)

	_, err = orderSvc.CancelOrder(context.Background(), p, company, confirmedOrder.ID, "twice")
	assert.ErrorIs(t, err, ledger.ErrOrderAlreadyClosed)
}
