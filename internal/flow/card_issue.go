package flow

import (
	"log/slog"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
)

// ResolveCardIssue maps an account's status to a canned remediation message.
// An empty accountNo asks the user to identify themselves.
//
// The expired-card notice names the matched account's own billing address.
func ResolveCardIssue(st *accounts.Store, accountNo string) string {
	if accountNo == "" {
		return CardAssistancePrompt
	}
	acct, ok := st.Get(accountNo)
	if !ok {
		slog.Warn("flow.ResolveCardIssue: account not found", "account_no", accountNo)
		return CardDefaultMessage
	}
	switch acct.Status {
	case models.AccountStatusBlocked:
		return CardBlockedMessage
	case models.AccountStatusExpired:
		return cardExpiredMessage(acct.BillingAddress)
	case models.AccountStatusActive:
		return CardActiveMessage
	default:
		return CardDefaultMessage
	}
}

// HandleAccountQuery answers an utterance that named a known account number.
// Card-issue keywords take precedence over the account summary.
func HandleAccountQuery(st *accounts.Store, accountNo, utterance string) string {
	acct, ok := st.Get(accountNo)
	if !ok {
		slog.Warn("flow.HandleAccountQuery: account not found", "account_no", accountNo)
		return AccountNotFoundMessage
	}
	if HasCardIssue(utterance) {
		return ResolveCardIssue(st, accountNo)
	}
	return accountSummary(acct)
}
