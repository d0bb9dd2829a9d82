package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"héllo", "hello", 1},
	}
	for _, tc := range testCases {
		t.Run(tc.a+"/"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, Distance([]rune(tc.a), []rune(tc.b)))
			assert.Equal(t, tc.want, Distance([]rune(tc.b), []rune(tc.a)))
		})
	}
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"AccountName", "accountname"},
		{"account_name", "accountname"},
		{"ext_Email", "email"},
		{"external_id", "id"},
		{"SF_Region__c", "region"},
		{"Billing-City ", "billingcity"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("AccountName", "account_name"))
	assert.Less(t, Similarity("Phone", "fax"), Threshold)
	assert.Equal(t, 1.0, Similarity("", "__c"))
	assert.InDelta(t, 1-2.0/7, Similarity("Account", "Acount1"), 1e-9)
}

func TestSuggestFieldMappings(t *testing.T) {
	targets := []string{"AccountName", "Phone", "BillingCity", "Email"}
	sources := []string{"fax", "billing_city", "account_name", "mail"}

	got := SuggestFieldMappings(targets, sources)
	require.Len(t, got, 3)

	assert.Equal(t, Suggestion{TargetField: "BillingCity", SourceField: "billing_city", Confidence: 1}, got[0])
	assert.Equal(t, Suggestion{TargetField: "AccountName", SourceField: "account_name", Confidence: 1}, got[1])
	assert.Equal(t, "Email", got[2].TargetField)
	assert.InDelta(t, 0.8, got[2].Confidence, 1e-9)

	for _, s := range got {
		assert.NotEqual(t, "fax", s.SourceField)
	}
}

func TestSuggestFieldMappings_TieKeepsFirstTarget(t *testing.T) {
	got := SuggestFieldMappings([]string{"Name__c", "name"}, []string{"ext_name"})
	require.Len(t, got, 1)
	assert.Equal(t, "Name__c", got[0].TargetField)
}

func TestSuggestFieldMappings_Empty(t *testing.T) {
	assert.Empty(t, SuggestFieldMappings(nil, []string{"a"}))
	assert.Empty(t, SuggestFieldMappings([]string{"a"}, nil))
}
