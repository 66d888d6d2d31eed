package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "corebank/pkg/domain"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		role     id.Role
		op       Operation
		expected bool
	}{
		{"operator opens accounts", id.RoleOperator, OpCreateAccount, true},
		{"client cannot open accounts", id.RoleClient, OpCreateAccount, false},
		{"operator deposits", id.RoleOperator, OpCreateDeposit, true},
		{"client cannot deposit", id.RoleClient, OpCreateDeposit, false},
		{"operator withdraws", id.RoleOperator, OpCreateWithdrawal, true},
		{"client cannot withdraw", id.RoleClient, OpCreateWithdrawal, false},
		{"client transfers", id.RoleClient, OpCreateTransfer, true},
		{"operator cannot transfer", id.RoleOperator, OpCreateTransfer, false},
		{"both may cancel", id.RoleClient, OpCancel, true},
		{"both may list", id.RoleClient, OpListTransactions, true},
		{"operator views reports", id.RoleOperator, OpViewReport, true},
		{"client cannot view reports", id.RoleClient, OpViewReport, false},
		{"operator views audit", id.RoleOperator, OpViewAudit, true},
		{"client cannot view audit", id.RoleClient, OpViewAudit, false},
		{"operator searches accounts", id.RoleOperator, OpSearchAccounts, true},
		{"client lists own accounts", id.RoleClient, OpListOwnAccounts, true},
		{"unknown role gets nothing", id.Role("auditor"), OpListTransactions, false},
		{"empty role gets nothing", id.Role(""), OpCancel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Allowed(tt.role, tt.op))
		})
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(id.RoleOperator, false), "operator cancels regardless of ownership")
	assert.True(t, CanCancel(id.RoleClient, true))
	assert.False(t, CanCancel(id.RoleClient, false))
	assert.False(t, CanCancel(id.Role(""), true))
}
