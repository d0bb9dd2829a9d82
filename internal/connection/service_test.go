package connection

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectforce/connectforce/internal/probe"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
)

type fakeProber struct {
	result    probe.Result
	endpoints []string
}

func (f *fakeProber) TestConnection(context.Context, *spec.Connection) probe.Result { return f.result }

func (f *fakeProber) TestEndpoint(_ context.Context, _ *spec.Connection, ep *spec.Endpoint) probe.Result {
	f.endpoints = append(f.endpoints, ep.Name)
	return f.result
}

type fixture struct {
	svc    *Service
	store  *store.FileStore
	prober *fakeProber
	now    time.Time
}

func newFixture() *fixture {
	f := &fixture{store: store.NewMemoryStore(), prober: &fakeProber{}, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	f.svc = NewService(f.store,
		WithProber(f.prober),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			n++
			return uuid.NewV5(uuid.NamespaceOID, strconv.Itoa(n)).String()
		}),
	)
	return f
}

func (f *fixture) create(t *testing.T) *spec.Connection {
	t.Helper()
	c, err := f.svc.Create(context.Background(), Input{
		Name:       "NetSuite <Prod>",
		BaseURL:    " https://erp.example.com/api ",
		AuthConfig: &spec.AuthConfig{Basic: &spec.BasicAuthConfig{Username: "u", Password: "p"}},
		Headers:    map[string]string{"X-Tenant": "acme\r\n", "Bad Header": "x"},
		Timeout:    5,
	})
	require.NoError(t, err)
	return c
}

func TestCreate(t *testing.T) {
	f := newFixture()
	c := f.create(t)

	assert.Equal(t, "NetSuite Prod", c.Name)
	assert.Equal(t, "https://erp.example.com/api", c.BaseURL)
	assert.Equal(t, spec.AuthNone, c.AuthenticationType)
	assert.Equal(t, map[string]string{"X-Tenant": "acme"}, c.Headers)
	assert.Equal(t, spec.MinTimeout, c.Timeout)
	assert.Equal(t, spec.DefaultRetryConfig(), c.RetryConfig)
	assert.Equal(t, spec.StatusInactive, c.Status)
	assert.Equal(t, f.now, c.CreatedAt)
	assert.NotNil(t, c.Endpoints)

	stored, err := f.svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, stored.Name)
}

func TestCreate_Validation(t *testing.T) {
	testCases := []struct {
		name string
		in   Input
	}{
		{"missing name", Input{BaseURL: "https://x.example.com"}},
		{"missing url", Input{Name: "x"}},
		{"name without valid characters", Input{Name: "<<>>", BaseURL: "https://x.example.com"}},
		{"relative url", Input{Name: "x", BaseURL: "/api"}},
		{"ftp url", Input{Name: "x", BaseURL: "ftp://x.example.com"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newFixture().svc.Create(context.Background(), tc.in)
			assert.ErrorIs(t, err, ErrInvalidConnection)
		})
	}

	long := strings.Repeat("d", 600)
	c, err := newFixture().svc.Create(context.Background(), Input{Name: "x", BaseURL: "https://x.example.com", Description: long, Timeout: 999999})
	require.NoError(t, err)
	assert.Len(t, c.Description, MaxDescriptionLength)
	assert.Equal(t, spec.MaxTimeout, c.Timeout)
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)
	f.now = f.now.Add(time.Hour)

	got, err := f.svc.Update(ctx, c.ID, Input{Name: "NetSuite (Sandbox)", Timeout: 999999, Headers: map[string]string{"Accept": "text/xml"}})
	require.NoError(t, err)
	assert.Equal(t, "NetSuite Sandbox", got.Name)
	assert.Equal(t, spec.MaxTimeout, got.Timeout)
	assert.Equal(t, map[string]string{"Accept": "text/xml"}, got.Headers)
	assert.Equal(t, c.BaseURL, got.BaseURL)
	assert.Equal(t, f.now, got.UpdatedAt)
	assert.Equal(t, c.CreatedAt, got.CreatedAt)

	_, err = f.svc.Update(ctx, c.ID, Input{BaseURL: "ftp://x.example.com"})
	assert.ErrorIs(t, err, ErrInvalidConnection)
	_, err = f.svc.Update(ctx, uuid.Must(uuid.NewV4()).String(), Input{Name: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGet_InvalidID(t *testing.T) {
	_, err := newFixture().svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestResolve(t *testing.T) {
	f := newFixture()
	c := f.create(t)
	ctx := context.Background()

	got, err := f.svc.Resolve(ctx, "netsuite prod")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	got, err = f.svc.Resolve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = f.svc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.create(t)
	_, err = f.svc.Resolve(ctx, "NetSuite Prod")
	assert.ErrorContains(t, err, "ambiguous")
}

func TestEndpoints(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)

	f.now = f.now.Add(time.Hour)
	ep, err := f.svc.AddEndpoint(ctx, c.ID, spec.Endpoint{Path: "items/{id}"})
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpointName, ep.Name)
	assert.Equal(t, "/items/{id}", ep.Path)
	assert.Equal(t, spec.GET, ep.Method)

	_, err = f.svc.AddEndpoint(ctx, c.ID, spec.Endpoint{Path: "/../etc/passwd"})
	assert.Error(t, err)

	updated := *ep
	updated.Name = "getItem"
	require.NoError(t, f.svc.UpdateEndpoint(ctx, c.ID, updated))

	stored, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, stored.Endpoints, 1)
	assert.Equal(t, "getItem", stored.Endpoints[0].Name)
	assert.True(t, f.now.Equal(stored.UpdatedAt))

	assert.ErrorIs(t, f.svc.UpdateEndpoint(ctx, c.ID, spec.Endpoint{ID: "nope"}), store.ErrNotFound)

	require.NoError(t, f.svc.DeleteEndpoint(ctx, c.ID, ep.ID))
	stored, err = f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Endpoints)
}

func TestTest_UpdatesStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)

	f.prober.result = probe.Result{Success: true, StatusCode: 200}
	res, err := f.svc.Test(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	stored, _ := f.svc.Get(ctx, c.ID)
	assert.Equal(t, spec.StatusActive, stored.Status)

	f.prober.result = probe.Result{StatusCode: 500, Error: "HTTP 500"}
	res, err = f.svc.Test(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	stored, _ = f.svc.Get(ctx, c.ID)
	assert.Equal(t, spec.StatusError, stored.Status)

	ep, err := f.svc.AddEndpoint(ctx, c.ID, spec.Endpoint{Name: "ping", Path: "/ping"})
	require.NoError(t, err)
	_, err = f.svc.TestEndpoint(ctx, c.ID, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, f.prober.endpoints)

	_, err = f.svc.TestEndpoint(ctx, c.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)
	ep, err := f.svc.AddEndpoint(ctx, c.ID, spec.Endpoint{Name: "ping", Path: "/ping"})
	require.NoError(t, err)

	dup, err := f.svc.Duplicate(ctx, c.ID)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, dup.ID)
	assert.Equal(t, "NetSuite Prod Copy", dup.Name)
	assert.Equal(t, spec.StatusInactive, dup.Status)
	require.Len(t, dup.Endpoints, 1)
	assert.NotEqual(t, ep.ID, dup.Endpoints[0].ID)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExportImport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)
	c.AuthenticationType = spec.AuthBasic
	require.NoError(t, f.svc.Save(ctx, c))

	data, err := ExportJSON(c)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"p"`)
	assert.NotContains(t, string(data), "authConfig")
	assert.NotContains(t, string(data), c.ID)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Basic", doc["authenticationType"])

	imported, err := f.svc.Import(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, imported.ID)
	assert.Equal(t, c.Name, imported.Name)
	assert.Equal(t, spec.AuthBasic, imported.AuthenticationType)

	_, err = f.svc.Import(ctx, []byte("{"))
	assert.ErrorIs(t, err, ErrInvalidConnection)
}

func TestSaveImported(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := &spec.Connection{Name: "Imported API", BaseURL: "https://x.example.com"}
	require.NoError(t, f.svc.SaveImported(ctx, conn))
	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, spec.StatusInactive, conn.Status)
	assert.Equal(t, f.now, conn.UpdatedAt)

	got, err := f.svc.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imported API", got.Name)
}
