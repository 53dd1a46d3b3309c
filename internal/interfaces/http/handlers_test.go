package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeData(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestMe_ExponeSaldosSinSeguridad(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, basePath+"/me", bearer(t, "customer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	me := decodeData(t, env)
	assert.Equal(t, "customer", me["id"])
	assert.Equal(t, true, me["has_pin"])
	points := me["points"].(map[string]any)
	assert.Equal(t, "100", points["balance"])
	assert.NotContains(t, string(env.Data), "pin_hash")
	assert.NotContains(t, me, "seller")
}

func TestAllocate_FlujoCompleto(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", bearer(t, "manager"),
		map[string]any{"recipient_id": "seller", "amount": "50", "pin": testPIN})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error.Message)

	tx := decodeData(t, env)
	assert.Equal(t, "allocation", tx["type"])
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, "50", tx["amount"])

	seller, err := ta.store.Users().GetByID(context.Background(), testTenant, "seller")
	require.NoError(t, err)
	assert.Equal(t, "50", seller.Seller.AvailablePoints.String())
}

func TestAllocate_PINMalFormado_Retorna400(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", bearer(t, "manager"),
		map[string]any{"recipient_id": "seller", "amount": "50", "pin": "12"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-argument", env.Error.Code)
	assert.Contains(t, env.Error.Message, "pin")
}

func TestAllocate_PINIncorrecto_Retorna403ConIntentos(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", bearer(t, "manager"),
		map[string]any{"recipient_id": "seller", "amount": "50", "pin": "9999"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission-denied", env.Error.Code)
	assert.Contains(t, env.Error.Message, "quedan 4")
}

func TestAllocate_SuperaTope_Retorna400(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", bearer(t, "manager"),
		map[string]any{"recipient_id": "seller", "amount": "150", "pin": testPIN})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-argument", env.Error.Code)
}

func TestAllocate_RolSinCapacidad_Retorna403(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", bearer(t, "customer"),
		map[string]any{"recipient_id": "seller", "amount": "10", "pin": testPIN})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission-denied", env.Error.Code)
}

func TestPayment_SaldoInsuficiente_Retorna409(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/payments", bearer(t, "customer"),
		map[string]any{"merchant_id": "m1", "amount": "120", "pin": testPIN})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "failed-precondition", env.Error.Code)
}

func TestPayment_ConfirmadoPorElPuesto(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/payments", bearer(t, "customer"),
		map[string]any{"merchant_id": "m1", "amount": 30, "pin": testPIN})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error.Message)
	tx := decodeData(t, env)
	assert.Equal(t, "pending", tx["status"])

	resp, env = ta.do(t, http.MethodPost, basePath+"/payments/"+tx["id"].(string)+"/confirm", bearer(t, "owner"),
		map[string]any{"pin": testPIN})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error.Message)
	assert.Equal(t, "completed", decodeData(t, env)["status"])
}

func TestCashSubmission_VentaEntregaYConfirmacion(t *testing.T) {
	ta := buildTestApp(t, nil)
	manager, seller := bearer(t, "manager"), bearer(t, "seller")

	resp, env := ta.do(t, http.MethodPost, basePath+"/allocations", manager,
		map[string]any{"recipient_id": "seller", "amount": "40", "pin": testPIN})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error.Message)

	resp, env = ta.do(t, http.MethodPost, basePath+"/seller-sales", seller,
		map[string]any{"recipient_id": "customer", "amount": "25", "pin": testPIN})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error.Message)
	saleID := decodeData(t, env)["id"].(string)

	resp, env = ta.do(t, http.MethodPost, basePath+"/cash-submissions", seller, map[string]any{
		"amount":      "25",
		"receiver_id": "manager",
		"sources":     []map[string]any{{"kind": "transaction", "id": saleID, "amount": "25"}},
		"pin":         testPIN,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error.Message)
	sub := decodeData(t, env)
	assert.Equal(t, "pending", sub["status"])

	resp, env = ta.do(t, http.MethodGet, basePath+"/cash-submissions/pending", manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeData(t, env)["total"])

	resp, env = ta.do(t, http.MethodPost, basePath+"/cash-submissions/"+sub["id"].(string)+"/confirm", manager,
		map[string]any{"pin": testPIN})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error.Message)
	assert.Equal(t, "confirmed", decodeData(t, env)["status"])

	// La misma venta no puede respaldar otra entrega.
	resp, env = ta.do(t, http.MethodPost, basePath+"/cash-submissions", seller, map[string]any{
		"amount":  "25",
		"sources": []map[string]any{{"kind": "transaction", "id": saleID, "amount": "25"}},
		"pin":     testPIN,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, []string{"already-exists", "failed-precondition"}, env.Error.Code)

	resp, env = ta.do(t, http.MethodGet, basePath+"/stats/departments/d1", manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error.Message)
	d1 := decodeData(t, env)
	assert.Equal(t, "15", d1["total_available_points"])
	assert.Equal(t, "25", d1["total_submitted"])
}

func TestCashSubmission_SinFuentes_Retorna400(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodPost, basePath+"/cash-submissions", bearer(t, "seller"),
		map[string]any{"amount": "10", "pin": testPIN})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-argument", env.Error.Code)
}

func TestStats_ManagerAjeno_Retorna403(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, basePath+"/stats/departments/d9", bearer(t, "manager"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission-denied", env.Error.Code)

	resp, _ = ta.do(t, http.MethodGet, basePath+"/stats/departments/d9", bearer(t, "finance"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetPIN_CambioYVerificacion(t *testing.T) {
	ta := buildTestApp(t, nil)
	auth := bearer(t, "customer")

	resp, env := ta.do(t, http.MethodPut, basePath+"/pin", auth, map[string]any{"current_pin": testPIN, "new_pin": "567890"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error.Message)

	resp, _ = ta.do(t, http.MethodPost, basePath+"/pin/verify", auth, map[string]any{"pin": "567890"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ta.do(t, http.MethodPost, basePath+"/pin/verify", auth, map[string]any{"pin": testPIN})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCashSubmission_RechazoExigePINYLimite(t *testing.T) {
	ta := buildTestApp(t, &denyLimiter{allow: 2})
	manager, seller := bearer(t, "manager"), bearer(t, "seller")
	path := basePath + "/cash-submissions/no-existe/reject"

	resp, env := ta.do(t, http.MethodPost, path, manager, map[string]any{"reason": "faltan billetes"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Error.Message, "pin")

	resp, env = ta.do(t, http.MethodPost, basePath+"/cash-submissions/no-existe/dispute", seller,
		map[string]any{"reason": "monto no coincide", "pin": "9999"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission-denied", env.Error.Code)

	resp, env = ta.do(t, http.MethodPost, path, manager, map[string]any{"reason": "faltan billetes", "pin": testPIN})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "resource-exhausted", env.Error.Code)
}
