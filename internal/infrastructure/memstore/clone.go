package memstore

import (
	"time"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	c.Roles = make(entity.RoleSet, len(u.Roles))
	for r := range u.Roles {
		c.Roles[r] = struct{}{}
	}
	c.Manager.ManagedDepartments = append([]string(nil), u.Manager.ManagedDepartments...)
	c.Security.PINLockedUntil = cloneTime(u.Security.PINLockedUntil)
	return &c
}

func cloneTx(t *entity.Transaction) *entity.Transaction {
	c := *t
	c.History = append([]entity.StatusChange(nil), t.History...)
	return &c
}

func cloneSubmission(s *entity.CashSubmission) *entity.CashSubmission {
	c := *s
	c.ReceivedBy = cloneString(s.ReceivedBy)
	c.ResolvedAt = cloneTime(s.ResolvedAt)
	c.Sources = append([]entity.SourceRef(nil), s.Sources...)
	return &c
}

func cloneCard(p *entity.PointCard) *entity.PointCard {
	c := *p
	c.ExpiresAt = cloneTime(p.ExpiresAt)
	return &c
}

func cloneMerchant(m *entity.Merchant) *entity.Merchant {
	c := *m
	c.AssistantIDs = append([]string(nil), m.AssistantIDs...)
	return &c
}

func cloneSummary(s *entity.EventCashSummary) *entity.EventCashSummary {
	c := *s
	c.ConfirmedByRole = copyMap(s.ConfirmedByRole)
	return &c
}
