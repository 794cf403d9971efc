// filepath: internal/flow/static.go
package flow

import (
	"fmt"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
)

// Static reply texts. These are user-facing and must stay byte-stable.
const (
	// AssistanceFooter is the always-available fallback text.
	AssistanceFooter = "For immediate help:\n" +
		"📞 Call: 1800-202-6161 (24/7)\n" +
		"🌐 Visit: https://www.hdfcbank.com\n" +
		"📱 Use Mobile Banking App"

	// FurtherAssistanceFooter closes account summaries and recovery results.
	FurtherAssistanceFooter = "For further assistance:\n" +
		"📞 Call: 1800-202-6161\n" +
		"🌐 Visit: https://www.hdfcbank.com"

	// SystemPreamble is sent to the language model ahead of every generic query.
	SystemPreamble = "You are HDFC Bank's official assistant. Provide accurate information about banking services. " +
		"For account-specific issues, always direct users to official channels. Be concise and professional."

	// QueryPrefix is prepended to the utterance in the language-model user message.
	QueryPrefix = "HDFC Query: "

	AccountNotFoundMessage = "Account number not found. Please try again or visit nearest branch."

	CardAssistancePrompt = "For card assistance, please provide your registered mobile number or account number."

	CardBlockedMessage = "Your card was temporarily blocked for security. Please visit " +
		"https://hdfc.cardreactivate.com or call 1800-202-6161."

	CardActiveMessage = "Your card appears active. Please check:\n" +
		"1. Available balance\n2. Expiry date\n3. Merchant POS terminal"

	CardDefaultMessage = "For card issues, please:\n" +
		"1. Check https://hdfc.cardstatus.com\n" +
		"2. Visit nearest branch\n" +
		"3. Call 24/7 helpline"

	RecoveryPrompt = "Let's help recover your account. Please share any of these:\n" +
		"📱 Last 4 digits of registered mobile\n" +
		"📧 Email address\n" +
		"💳 Last payment amount\n" +
		"🏠 Part of billing address"

	RecoveryRetryMessage = "The details you provided don't match our records. Please try again with:\n" +
		"1. Exact last 4 digits of registered mobile\n" +
		"2. Complete email address\n" +
		"3. Full billing address\n" +
		"4. Exact last payment amount"
)

// cardExpiredMessage renders the dispatch notice for an expired card.
func cardExpiredMessage(billingAddress string) string {
	return "Your card has expired. New card already dispatched to: " + billingAddress
}

// accountSummary renders the default reply for an account-specific query.
func accountSummary(a models.AccountRecord) string {
	return fmt.Sprintf("Thank you, %s. How can I assist you with your %s?\n", a.Name, a.CardType) +
		fmt.Sprintf("Your card is currently %s.\n", a.Status) +
		fmt.Sprintf("Last payment: %s (Due: %s)\n\n", a.LastPayment, a.DueDate) +
		FurtherAssistanceFooter
}

// recoverySummary renders the verified-account reply. Card and phone are masked; the
// remaining fields are disclosed in the clear.
func recoverySummary(a models.AccountRecord) string {
	return "Account verified! Here are your details:\n\n" +
		fmt.Sprintf("👤 Name: %s\n", a.Name) +
		fmt.Sprintf("💳 Card: %s\n", accounts.MaskCard(a.CardNumber)) +
		fmt.Sprintf("📱 Phone: %s\n", accounts.MaskPhone(a.Phone)) +
		fmt.Sprintf("📧 Email: %s\n", a.Email) +
		fmt.Sprintf("🏠 Billing Address: %s\n\n", a.BillingAddress) +
		fmt.Sprintf("Your %s is currently %s.\n", a.CardType, a.Status) +
		fmt.Sprintf("Last payment: %s (Due: %s)\n\n", a.LastPayment, a.DueDate) +
		FurtherAssistanceFooter
}
