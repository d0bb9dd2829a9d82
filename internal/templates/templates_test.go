package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
)

func TestCatalog(t *testing.T) {
	all := All()
	require.Len(t, all, 7)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	for _, erp := range []spec.ERPType{spec.ERPNetSuite, spec.ERPSAP, spec.ERPDynamics365, spec.ERPAcumatica, spec.ERPQuickBooks, spec.ERPXero} {
		tpl, ok := Lookup(string(erp))
		require.True(t, ok, erp)
		assert.Equal(t, spec.AuthOAuth2, tpl.AuthType, erp)
		assert.NotEmpty(t, tpl.DefaultEndpoints, erp)
		assert.Equal(t, "ERP Systems", tpl.Category)
	}

	custom, ok := Lookup("custom api")
	require.True(t, ok)
	assert.Equal(t, spec.AuthNone, custom.AuthType)
	assert.Empty(t, custom.DefaultEndpoints)

	_, ok = Lookup("salesforce")
	assert.False(t, ok)
}

func TestCatalogContent(t *testing.T) {
	qb, ok := Lookup("quickbooks")
	require.True(t, ok)
	require.Len(t, qb.DefaultEndpoints, 3)

	create := qb.DefaultEndpoints[2]
	assert.Equal(t, spec.POST, create.Method)
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.IsRequired("DisplayName"))
	assert.Equal(t, spec.TypeString, create.RequestBody.Properties["PrimaryEmailAddr"].Properties["Address"].Type)

	query := qb.DefaultEndpoints[0].Parameters[1]
	assert.Equal(t, spec.InQuery, query.In)
	assert.Equal(t, "SELECT * FROM Customer", query.DefaultValue)

	ns, _ := Lookup("NetSuite")
	require.Len(t, ns.DefaultMappings, 1)
	assert.Equal(t, store.Bidirectional, ns.DefaultMappings[0].SyncDirection)
	assert.Equal(t, spec.TypeArray, ns.DefaultEndpoints[0].ResponseSchema.Properties["items"].Type)
}

func TestLookupReturnsCopies(t *testing.T) {
	a, _ := Lookup("xero")
	a.DefaultEndpoints[0].Name = "changed"
	b, _ := Lookup("xero")
	assert.Equal(t, "Get Contacts", b.DefaultEndpoints[0].Name)
}

func TestInputCreatesConnection(t *testing.T) {
	tpl, _ := Lookup("sap")
	in := tpl.Input("SAP Prod", "https://sap.example.com")
	again := tpl.Input("SAP Prod", "https://sap.example.com")
	assert.Equal(t, in.Endpoints[0].ID, again.Endpoints[0].ID)
	assert.NotEqual(t, "sap-business-partners", in.Endpoints[0].ID)

	svc := connection.NewService(store.NewMemoryStore())
	c, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, spec.ERPSAP, c.ERPType)
	assert.Equal(t, spec.AuthOAuth2, c.AuthenticationType)
	assert.Len(t, c.Endpoints, 3)
	assert.Equal(t, []string{"sap"}, c.Tags)
}
