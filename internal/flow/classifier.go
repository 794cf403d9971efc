package flow

import (
	"strings"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// Keyword tables, scanned in order.
var (
	recoveryKeywords = []string{
		"forgot", "remember", "lost card",
		"details", "retrieve", "recover",
	}
	cardIssueKeywords = []string{
		"not working", "declined", "blocked",
		"transaction failed", "card issue",
	}
)

// Normalize lower-cases and trims an utterance. Every component matches against the
// normalized form.
func Normalize(utterance string) string {
	return strings.ToLower(strings.TrimSpace(utterance))
}

// Classify routes a normalized utterance. Rules are evaluated in order and the first
// match wins: recovery keywords, then a known account number (first key in accountKeys
// order), then card-issue keywords, then generic.
func Classify(utterance string, accountKeys []string) models.Classification {
	if containsAny(utterance, recoveryKeywords) {
		return models.Classification{Intent: models.IntentRecovery}
	}
	for _, key := range accountKeys {
		if key != "" && strings.Contains(utterance, key) {
			return models.Classification{Intent: models.IntentAccountSpecific, AccountNo: key}
		}
	}
	if HasCardIssue(utterance) {
		return models.Classification{Intent: models.IntentCardIssue}
	}
	return models.Classification{Intent: models.IntentGeneric}
}

// HasCardIssue reports whether the utterance mentions a card problem.
func HasCardIssue(utterance string) bool {
	return containsAny(utterance, cardIssueKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
