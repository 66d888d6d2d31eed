// Package policy is the authorization gate: a static capability table from
// role to the engine operations it may invoke. Role checks live here, not
// inside business logic; the engine consults the gate at each operation
// boundary and audits denials.
package policy

import id "corebank/pkg/domain"

// Operation names an engine entry point.
type Operation string

const (
	OpCreateAccount    Operation = "createAccount"
	OpBlockAccount     Operation = "blockAccount"
	OpSearchAccounts   Operation = "searchAccounts"
	OpListOwnAccounts  Operation = "listOwnAccounts"
	OpCreateDeposit    Operation = "createDeposit"
	OpCreateWithdrawal Operation = "createWithdrawal"
	OpCreateTransfer   Operation = "createTransfer"
	OpCancel           Operation = "cancel"
	OpListTransactions Operation = "listTransactions"
	OpViewReport       Operation = "viewReport"
	OpViewAudit        Operation = "viewAudit"
)

// capabilities is the whole authorization model. Ownership-scoped rules
// (transfer source, cancel counterpart, listing scope) are enforced by the
// engine on top of this table.
var capabilities = map[Operation]map[id.Role]bool{
	OpCreateAccount:    {id.RoleOperator: true},
	OpBlockAccount:     {id.RoleOperator: true},
	OpSearchAccounts:   {id.RoleOperator: true},
	OpListOwnAccounts:  {id.RoleClient: true},
	OpCreateDeposit:    {id.RoleOperator: true},
	OpCreateWithdrawal: {id.RoleOperator: true},
	OpCreateTransfer:   {id.RoleClient: true},
	OpCancel:           {id.RoleOperator: true, id.RoleClient: true},
	OpListTransactions: {id.RoleOperator: true, id.RoleClient: true},
	OpViewReport:       {id.RoleOperator: true},
	OpViewAudit:        {id.RoleOperator: true},
}

// Allowed reports whether the role may invoke the operation at all.
func Allowed(role id.Role, op Operation) bool {
	return capabilities[op][role]
}

// CanCancel decides cancel eligibility: an operator may cancel any pending
// transaction, a client only one whose source or destination account they
// own. ownsCounterpart is resolved by the engine from the ledger store.
func CanCancel(role id.Role, ownsCounterpart bool) bool {
	switch role {
	case id.RoleOperator:
		return true
	case id.RoleClient:
		return ownsCounterpart
	default:
		return false
	}
}
