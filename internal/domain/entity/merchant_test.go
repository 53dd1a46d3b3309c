package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/feria-api/internal/domain"
)

func TestAssistantCap_FallbackAlDefecto(t *testing.T) {
	var sinConfig *TenantSettings
	assert.Equal(t, DefaultMaxMerchantAssistants, sinConfig.AssistantCap())
	assert.Equal(t, DefaultMaxMerchantAssistants, (&TenantSettings{}).AssistantCap())
	assert.Equal(t, 2, (&TenantSettings{MaxMerchantAssistants: 2}).AssistantCap())
}

func TestCheckAssistants(t *testing.T) {
	m := &Merchant{ID: "m1", OwnerID: "owner", AssistantIDs: []string{"a1", "a2", "a3"}}

	assert.NoError(t, m.CheckAssistants(3))
	err := m.CheckAssistants(2)
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assert.Contains(t, domain.MessageOf(err), "admite 2")
}
