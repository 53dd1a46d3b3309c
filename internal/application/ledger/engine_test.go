package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/application/pin"
	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
	"github.com/jhoicas/feria-api/internal/infrastructure/memstore"
	"github.com/jhoicas/feria-api/pkg/logger"
)

const testPIN = "1234"

var tenant = entity.Tenant{OrganizationID: "org-1", EventID: "evt-1"}

// recorder hook post-commit que guarda los eventos recibidos.
type recorder struct {
	mu     sync.Mutex
	events []entity.LedgerEvent
}

func (r *recorder) AfterCommit(_ context.Context, ev entity.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() entity.LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	store  *memstore.Store
	engine *ledger.Engine
	hooks  *recorder
	now    time.Time
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	require.NoError(t, err)
	sec := entity.Security{PINHash: string(hash), PINMethod: entity.PINMethodBcrypt}

	s := memstore.New()
	s.PutTenant(&entity.TenantSettings{Tenant: tenant, Status: entity.TenantStatusActive, MaxAllocationPerOperation: dec(100)})
	put := func(u *entity.User) {
		u.Tenant = tenant
		u.Status = "active"
		u.Security = sec
		s.PutUser(u)
	}
	put(&entity.User{ID: "manager", Roles: entity.NewRoleSet("sellerManager"),
		Manager: entity.ManagerAccount{ManagedDepartments: []string{"d1"}}})
	put(&entity.User{ID: "seller", Roles: entity.NewRoleSet("seller"), DepartmentID: "d1"})
	put(&entity.User{ID: "seller-d2", Roles: entity.NewRoleSet("seller"), DepartmentID: "d2"})
	put(&entity.User{ID: "pseller", Roles: entity.NewRoleSet("pointSeller")})
	put(&entity.User{ID: "customer", Roles: entity.NewRoleSet("customer"),
		Customer: entity.PointsAccount{Balance: dec(100), TotalReceived: dec(100)}})
	put(&entity.User{ID: "customer-2", Roles: entity.NewRoleSet("customer")})
	put(&entity.User{ID: "owner", Roles: entity.NewRoleSet("merchant"), MerchantID: "m1"})
	put(&entity.User{ID: "assistant", Roles: entity.NewRoleSet("merchant"), MerchantID: "m1"})
	put(&entity.User{ID: "other-merchant", Roles: entity.NewRoleSet("merchant"), MerchantID: "m2"})
	put(&entity.User{ID: "evmanager", Roles: entity.NewRoleSet("eventManager")})
	s.PutMerchant(&entity.Merchant{ID: "m1", Tenant: tenant, OwnerID: "owner", AssistantIDs: []string{"assistant"}})
	s.PutMerchant(&entity.Merchant{ID: "m2", Tenant: tenant, OwnerID: "other-merchant"})

	f := &fixture{store: s, hooks: &recorder{}, now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	cfg := pin.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	guard := pin.NewGuard(s.PINs(), cfg, logger.Nop()).WithClock(clock)
	f.engine = ledger.NewEngine(s, guard, f.hooks, ledger.DefaultConfig()).WithClock(clock)
	return f
}

func (f *fixture) caller(t *testing.T, id string) ports.Caller {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), tenant, id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return ports.Caller{Tenant: tenant, UserID: u.ID, Roles: u.Roles}
}

func (f *fixture) user(t *testing.T, id string) *entity.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), tenant, id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (f *fixture) merchant(t *testing.T, id string) *entity.Merchant {
	t.Helper()
	var m *entity.Merchant
	require.NoError(t, f.store.RunInTx(context.Background(), func(r repository.Repos) error {
		var err error
		m, err = r.Merchants.GetByID(context.Background(), tenant, id)
		return err
	}))
	return m
}

func assertDec(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: esperado %d, obtenido %s", msg, want, got)
}

// ─── Asignación ───────────────────────────────────────────────────────────────

func TestAllocate_EncargadoAsignaAVendedor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.engine.Allocate(ctx, f.caller(t, "manager"), ledger.TransferInput{RecipientID: "seller", Amount: dec(50), PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeAllocation, tx.Type)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)

	assertDec(t, 50, f.user(t, "seller").Seller.AvailablePoints, "puntos del vendedor")
	m := f.user(t, "manager")
	assertDec(t, 50, m.Cash.TotalReceived, "efectivo recibido por el encargado")
	assertDec(t, 50, m.Cash.CashOnHand, "efectivo en mano del encargado")
	assertDec(t, 50, m.Manager.PointsAllocated, "puntos asignados")

	ev := f.hooks.last()
	assert.Equal(t, entity.EventAllocation, ev.Type)
	assert.Equal(t, []string{"d1"}, ev.DepartmentIDs)
	assert.Equal(t, []string{"manager"}, ev.ManagerIDs)
}

func TestAllocate_SuperaTopeDelTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "manager"),
		ledger.TransferInput{RecipientID: "seller", Amount: dec(101), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	assert.True(t, f.user(t, "seller").Seller.AvailablePoints.IsZero())
}

func TestAllocate_SinTopeDelTenant_UsaElGlobal(t *testing.T) {
	f := newFixture(t)
	f.store.PutTenant(&entity.TenantSettings{Tenant: tenant, Status: entity.TenantStatusActive})
	ctx := context.Background()

	_, err := f.engine.Allocate(ctx, f.caller(t, "manager"), ledger.TransferInput{RecipientID: "seller", Amount: dec(500), PIN: testPIN})
	require.NoError(t, err)
	_, err = f.engine.Allocate(ctx, f.caller(t, "manager"), ledger.TransferInput{RecipientID: "seller", Amount: dec(501), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestAllocate_VendedorDeOtroDepartamento_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "manager"),
		ledger.TransferInput{RecipientID: "seller-d2", Amount: dec(10), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestAllocate_RolSinCapacidad_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "seller"),
		ledger.TransferInput{RecipientID: "seller-d2", Amount: dec(10), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestAllocate_PINIncorrecto_NoMueveNada(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "manager"),
		ledger.TransferInput{RecipientID: "seller", Amount: dec(10), PIN: "0000"})
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
	assert.True(t, f.user(t, "seller").Seller.AvailablePoints.IsZero())
	assert.Empty(t, f.hooks.events)
}

func TestAllocate_EntradaInvalida(t *testing.T) {
	f := newFixture(t)
	caller := f.caller(t, "manager")
	cases := []ledger.TransferInput{
		{RecipientID: "", Amount: dec(10), PIN: testPIN},
		{RecipientID: "manager", Amount: dec(10), PIN: testPIN},
		{RecipientID: "seller", Amount: dec(0), PIN: testPIN},
		{RecipientID: "seller", Amount: dec(-5), PIN: testPIN},
		{RecipientID: "seller", Amount: decimal.RequireFromString("1.005"), PIN: testPIN},
	}
	for _, in := range cases {
		_, err := f.engine.Allocate(context.Background(), caller, in)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "entrada %+v", in)
	}
}

func TestAllocate_DestinatarioInexistente_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "manager"),
		ledger.TransferInput{RecipientID: "nadie", Amount: dec(10), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAllocate_EventoCerrado_FailedPrecondition(t *testing.T) {
	f := newFixture(t)
	f.store.PutTenant(&entity.TenantSettings{Tenant: tenant, Status: entity.TenantStatusClosed})
	_, err := f.engine.Allocate(context.Background(), f.caller(t, "manager"),
		ledger.TransferInput{RecipientID: "seller", Amount: dec(10), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
}

// ─── Ventas ───────────────────────────────────────────────────────────────────

func TestDirectSale_VendedorDePuntos_ActualizaEstadisticasDelDia(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.DirectSale(context.Background(), f.caller(t, "pseller"),
		ledger.TransferInput{RecipientID: "customer-2", Amount: dec(25), PIN: testPIN})
	require.NoError(t, err)

	assertDec(t, 25, f.user(t, "customer-2").Customer.Balance, "saldo del cliente")
	ps := f.user(t, "pseller")
	assertDec(t, 25, ps.Cash.CashOnHand, "efectivo del emisor")
	assertDec(t, 25, ps.Cash.TotalCollected, "total cobrado")
	assertDec(t, 25, ps.PointSale.TodayIssued, "emitido hoy")
	assert.Equal(t, "2026-03-01", ps.PointSale.TodayDate)
}

func TestDirectSale_DestinatarioNoCliente_InvalidArgument(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.DirectSale(context.Background(), f.caller(t, "pseller"),
		ledger.TransferInput{RecipientID: "seller", Amount: dec(25), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestSellerSale_DescuentaInventarioYDejaEfectivoPendiente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Allocate(ctx, f.caller(t, "manager"), ledger.TransferInput{RecipientID: "seller", Amount: dec(50), PIN: testPIN})
	require.NoError(t, err)

	_, err = f.engine.SellerSale(ctx, f.caller(t, "seller"), ledger.TransferInput{RecipientID: "customer-2", Amount: dec(30), PIN: testPIN})
	require.NoError(t, err)

	s := f.user(t, "seller")
	assertDec(t, 20, s.Seller.AvailablePoints, "disponible")
	assertDec(t, 30, s.Seller.PendingCollection, "pendiente de entregar")
	assertDec(t, 30, s.Seller.TotalSold, "total vendido")
	assertDec(t, 30, f.user(t, "customer-2").Customer.Balance, "saldo del cliente")
}

func TestSellerSale_InventarioInsuficiente_NoEscribe(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SellerSale(context.Background(), f.caller(t, "seller"),
		ledger.TransferInput{RecipientID: "customer-2", Amount: dec(1), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assert.True(t, f.user(t, "customer-2").Customer.Balance.IsZero())
}

// ─── Pagos ────────────────────────────────────────────────────────────────────

func TestPago_ConfirmarYReembolsar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(40), PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusPending, tx.Status)
	assertDec(t, 60, f.user(t, "customer").Customer.Balance, "saldo tras pagar")

	confirmed, err := f.engine.ConfirmPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusCompleted, confirmed.Status)
	assert.Equal(t, "owner", confirmed.CollectedBy)
	assertDec(t, 60, f.user(t, "customer").Customer.Balance, "saldo tras confirmar")
	assertDec(t, 40, f.merchant(t, "m1").Revenue.Total(), "ingresos tras confirmar")

	refunded, err := f.engine.RefundPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusRefunded, refunded.Status)
	assert.Len(t, refunded.History, 3)
	assertDec(t, 100, f.user(t, "customer").Customer.Balance, "saldo tras reembolso")
	m := f.merchant(t, "m1")
	assertDec(t, 0, m.Revenue.Total(), "ingresos tras reembolso")
	assertDec(t, 40, m.Revenue.Refunded, "reembolsado")
}

func TestPago_SaldoInsuficiente(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Payment(context.Background(), f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(101), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assertDec(t, 100, f.user(t, "customer").Customer.Balance, "saldo intacto")
}

func TestPago_PuestoInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Payment(context.Background(), f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m9", Amount: dec(1), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConfirmPayment_AsistenteCobraEnSuBalde(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	require.NoError(t, err)

	_, err = f.engine.ConfirmPayment(ctx, f.caller(t, "assistant"), tx.ID, testPIN)
	require.NoError(t, err)
	m := f.merchant(t, "m1")
	assertDec(t, 15, m.Revenue.AssistantCollected, "cobrado por asistente")
	assertDec(t, 0, m.Revenue.OwnerCollected, "cobrado por dueño")
}

func TestConfirmPayment_OtroPuesto_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	require.NoError(t, err)

	_, err = f.engine.ConfirmPayment(ctx, f.caller(t, "other-merchant"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestConfirmPayment_DosVeces_SegundaFalla(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	require.NoError(t, err)

	_, err = f.engine.ConfirmPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	require.NoError(t, err)
	_, err = f.engine.ConfirmPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assertDec(t, 15, f.merchant(t, "m1").Revenue.Total(), "sin doble ingreso")
}

func TestRefundPayment_AsistenteNoPuede(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, _ := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	_, err := f.engine.ConfirmPayment(ctx, f.caller(t, "assistant"), tx.ID, testPIN)
	require.NoError(t, err)

	_, err = f.engine.RefundPayment(ctx, f.caller(t, "assistant"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestRefundPayment_Pendiente_FailedPrecondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, _ := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	_, err := f.engine.RefundPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
}

func TestCancelPayment_ClienteCancelaPendiente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, _ := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})

	cancelled, err := f.engine.CancelPayment(ctx, f.caller(t, "customer"), tx.ID, testPIN)
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusCancelled, cancelled.Status)
	assertDec(t, 100, f.user(t, "customer").Customer.Balance, "saldo restaurado")

	_, err = f.engine.ConfirmPayment(ctx, f.caller(t, "owner"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
}

func TestCancelPayment_Ajeno_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, _ := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	_, err := f.engine.CancelPayment(ctx, f.caller(t, "customer-2"), tx.ID, testPIN)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestPago_Concurrente_NuncaSaldoNegativo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := f.caller(t, "customer")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Payment(ctx, caller, ledger.PaymentInput{MerchantID: "m1", Amount: dec(30), PIN: testPIN}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assertDec(t, 10, f.user(t, "customer").Customer.Balance, "saldo final")
}

// ─── Tarjetas ─────────────────────────────────────────────────────────────────

// overstaff deja a m1 con cuatro asistentes en un evento que admite dos.
func (f *fixture) overstaff(t *testing.T) {
	t.Helper()
	f.store.PutTenant(&entity.TenantSettings{Tenant: tenant, Status: entity.TenantStatusActive,
		MaxAllocationPerOperation: dec(100), MaxMerchantAssistants: 2})
	f.store.PutMerchant(&entity.Merchant{ID: "m1", Tenant: tenant, OwnerID: "owner",
		AssistantIDs: []string{"assistant", "a2", "a3", "a4"}})
}

func TestConfirmPayment_PuestoExcedeTopeDeAsistentes_FailedPrecondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.engine.Payment(ctx, f.caller(t, "customer"), ledger.PaymentInput{MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	require.NoError(t, err)
	f.overstaff(t)

	for _, who := range []string{"assistant", "owner"} {
		_, err = f.engine.ConfirmPayment(ctx, f.caller(t, who), tx.ID, testPIN)
		assert.True(t, errors.Is(err, domain.ErrFailedPrecondition), "confirmado por %s", who)
	}
	assertDec(t, 0, f.merchant(t, "m1").Revenue.Total(), "sin ingresos")
}

func TestRedeemPointCard_PuestoExcedeTopeDeAsistentes_FailedPrecondition(t *testing.T) {
	f := newFixture(t)
	f.overstaff(t)
	f.store.PutCard(&entity.PointCard{ID: "c1", Tenant: tenant, Status: entity.CardStatus{Active: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})

	_, err := f.engine.RedeemPointCard(context.Background(), f.caller(t, "assistant"),
		ledger.RedeemCardInput{CardID: "c1", MerchantID: "m1", Amount: dec(5), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assertDec(t, 0, f.merchant(t, "m1").Revenue.Total(), "sin ingresos")
}

func TestTarjeta_EmitirYCanjearHastaVaciar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.engine.IssuePointCard(ctx, f.caller(t, "pseller"), ledger.IssueCardInput{Amount: dec(20), ValidDays: 2, PIN: testPIN})
	require.NoError(t, err)
	card := issued.Card
	assert.True(t, card.Status.Active)
	require.NotNil(t, card.ExpiresAt)
	assert.Equal(t, f.now.AddDate(0, 0, 2), *card.ExpiresAt)
	ps := f.user(t, "pseller")
	assertDec(t, 20, ps.Cash.CashOnHand, "efectivo del emisor")
	assert.Equal(t, 1, ps.PointSale.TotalCards)

	_, err = f.engine.RedeemPointCard(ctx, f.caller(t, "assistant"), ledger.RedeemCardInput{CardID: card.ID, MerchantID: "m1", Amount: dec(15), PIN: testPIN})
	require.NoError(t, err)
	_, err = f.engine.RedeemPointCard(ctx, f.caller(t, "owner"), ledger.RedeemCardInput{CardID: card.ID, MerchantID: "m1", Amount: dec(5), PIN: testPIN})
	require.NoError(t, err)
	assertDec(t, 20, f.merchant(t, "m1").Revenue.Total(), "ingresos por tarjeta")

	_, err = f.engine.RedeemPointCard(ctx, f.caller(t, "owner"), ledger.RedeemCardInput{CardID: card.ID, MerchantID: "m1", Amount: dec(1), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition), "tarjeta vacía")
}

func TestRedeemPointCard_Rechazos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.now.Add(-time.Minute)
	f.store.PutCard(&entity.PointCard{ID: "vencida-fecha", Tenant: tenant, Status: entity.CardStatus{Active: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}, ExpiresAt: &past})
	f.store.PutCard(&entity.PointCard{ID: "vencida-flag", Tenant: tenant, Status: entity.CardStatus{Active: true, Expired: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})
	f.store.PutCard(&entity.PointCard{ID: "destruida", Tenant: tenant, Status: entity.CardStatus{Destroyed: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})
	f.store.PutCard(&entity.PointCard{ID: "inactiva", Tenant: tenant,
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})
	f.store.PutCard(&entity.PointCard{ID: "corta", Tenant: tenant, Status: entity.CardStatus{Active: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(3)}})

	for _, id := range []string{"vencida-fecha", "vencida-flag", "destruida", "inactiva", "corta"} {
		_, err := f.engine.RedeemPointCard(ctx, f.caller(t, "owner"), ledger.RedeemCardInput{CardID: id, MerchantID: "m1", Amount: dec(5), PIN: testPIN})
		assert.True(t, errors.Is(err, domain.ErrFailedPrecondition), "tarjeta %s", id)
	}
	assertDec(t, 0, f.merchant(t, "m1").Revenue.Total(), "sin ingresos")

	_, err := f.engine.RedeemPointCard(ctx, f.caller(t, "owner"), ledger.RedeemCardInput{CardID: "no-existe", MerchantID: "m1", Amount: dec(5), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedeemPointCard_PuestoAjeno_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.store.PutCard(&entity.PointCard{ID: "c1", Tenant: tenant, Status: entity.CardStatus{Active: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})
	_, err := f.engine.RedeemPointCard(context.Background(), f.caller(t, "other-merchant"),
		ledger.RedeemCardInput{CardID: "c1", MerchantID: "m1", Amount: dec(5), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestDestroyPointCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutCard(&entity.PointCard{ID: "c1", Tenant: tenant, Status: entity.CardStatus{Active: true},
		Balance: entity.CardBalance{Initial: dec(10), Current: dec(10)}})

	_, err := f.engine.DestroyPointCard(ctx, f.caller(t, "pseller"), "c1", testPIN)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	card, err := f.engine.DestroyPointCard(ctx, f.caller(t, "evmanager"), "c1", testPIN)
	require.NoError(t, err)
	assert.True(t, card.Status.Destroyed)
	assert.False(t, card.Status.Active)

	_, err = f.engine.RedeemPointCard(ctx, f.caller(t, "owner"), ledger.RedeemCardInput{CardID: "c1", MerchantID: "m1", Amount: dec(1), PIN: testPIN})
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
}

func TestIssuePointCard_VigenciaInvalida(t *testing.T) {
	f := newFixture(t)
	for _, days := range []int{-1, 366} {
		_, err := f.engine.IssuePointCard(context.Background(), f.caller(t, "pseller"), ledger.IssueCardInput{Amount: dec(5), ValidDays: days, PIN: testPIN})
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "días %d", days)
	}
}
