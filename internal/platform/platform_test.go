package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	name string
	args []string
}

func scripted(out string, err error, calls *[]recorded) Runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recorded{name: name, args: args})
		return []byte(out), err
	}
}

func TestSFCLI_DescribeObject(t *testing.T) {
	var calls []recorded
	cli := &SFCLI{Run: scripted(`{"status":0,"result":{"label":"Account","keyPrefix":"001","fields":[
		{"name":"Name","label":"Account Name","type":"string","length":255,"nillable":false,"defaultedOnCreate":false,"createable":true},
		{"name":"Phone","label":"Phone","type":"phone","nillable":true},
		{"name":"OwnerId","type":"reference","nillable":false,"defaultedOnCreate":true,"referenceTo":["User"]}
	]}}`, nil, &calls)}

	obj, err := cli.DescribeObject(context.Background(), "Account")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "sf", calls[0].name)
	assert.Equal(t, []string{"sobject", "describe", "--sobject", "Account", "--json"}, calls[0].args)

	assert.Equal(t, "001", obj.KeyPrefix)
	assert.False(t, obj.IsCustom)
	assert.Equal(t, []string{"Name", "Phone", "OwnerId"}, obj.FieldNames())
	assert.True(t, obj.Fields[0].Required)
	assert.False(t, obj.Fields[1].Required)
	assert.False(t, obj.Fields[2].Required, "defaulted on create")
	assert.Equal(t, []string{"User"}, obj.Fields[2].ReferenceTo)
}

func TestSFCLI_InvalidObjectName(t *testing.T) {
	var calls []recorded
	cli := &SFCLI{Run: scripted(`{}`, nil, &calls)}
	_, err := cli.DescribeObject(context.Background(), "Account; rm -rf /")
	require.Error(t, err)
	assert.Empty(t, calls)
}

func TestSFCLI_ListAndQuery(t *testing.T) {
	var calls []recorded
	cli := &SFCLI{Bin: "/opt/sf", Run: scripted(`{"status":0,"result":[{"name":"Invoice__c"},{"name":"Account","label":"Account"}]}`, nil, &calls)}
	objs, err := cli.ListObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.True(t, objs[0].IsCustom)
	assert.Equal(t, "Invoice__c", objs[0].Label)
	assert.Equal(t, "/opt/sf", calls[0].name)

	cli.Run = scripted(`{"status":0,"result":{"records":[{"Id":"001","Name":"Acme"}]}}`, nil, &calls)
	recs, err := cli.Query(context.Background(), `SELECT Id, Name FROM Account WHERE Name = "Acme"`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Acme", recs[0]["Name"])
	assert.Equal(t, `SELECT Id, Name FROM Account WHERE Name = "Acme"`, calls[1].args[3])
}

func TestSFCLI_Failures(t *testing.T) {
	var calls []recorded
	cli := &SFCLI{Run: scripted(`{"status":1,"message":"No default org. token=abc123"}`, nil, &calls)}
	_, err := cli.Query(context.Background(), "SELECT Id FROM Account")
	var cliErr *CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, "data query", cliErr.Command)
	assert.NotContains(t, cliErr.Message, "abc123")

	cli.Run = scripted("", errors.New("exec: \"sf\": executable file not found in $PATH"), &calls)
	_, err = cli.ListObjects(context.Background())
	require.ErrorAs(t, err, &cliErr)
	assert.Contains(t, cliErr.Message, "executable file not found")

	cli.Run = scripted("not json", nil, &calls)
	_, err = cli.DefaultOrg(context.Background())
	require.ErrorAs(t, err, &cliErr)

	cli.Run = scripted(`{"status":1,"message":"Deploy failed: component errors"}`, nil, &calls)
	res, err := cli.Deploy(context.Background(), "force-app")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "component errors")
}

func TestSFCLI_Timeout(t *testing.T) {
	cli := &SFCLI{Timeout: 10 * time.Millisecond, Run: func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := cli.ListObjects(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timed out"), err.Error())
}

func TestCachedMetadata(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &Fake{Objects: map[string]Object{
		"Account": {Name: "Account", Fields: []Field{{Name: "Name"}}},
	}}
	c := NewCachedMetadata(fake, time.Minute)
	c.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		obj, err := c.DescribeObject(ctx, "Account")
		require.NoError(t, err)
		assert.Equal(t, []string{"Name"}, obj.FieldNames())
	}
	assert.Equal(t, 1, fake.Calls)

	_, err := c.Describe(ctx, "Account", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls)

	now = now.Add(time.Minute)
	_, err = c.DescribeObject(ctx, "Account")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.Calls, "expired entry is refetched")

	_, err = c.ListObjects(ctx)
	require.NoError(t, err)
	_, err = c.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, fake.Calls)

	c.Clear()
	_, err = c.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, fake.Calls)

	fake.Err = errors.New("boom")
	c.Clear()
	_, err = c.DescribeObject(ctx, "Account")
	assert.Error(t, err)
}

func TestStandardObjects(t *testing.T) {
	objs := StandardObjects()
	assert.Contains(t, objs, "Account")
	assert.Contains(t, objs, "CampaignMember")
	objs[0] = "changed"
	assert.Equal(t, "Account", StandardObjects()[0])
}

func TestFakeDeploy(t *testing.T) {
	f := &Fake{}
	res, err := f.Deploy(context.Background(), "force-app")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"force-app"}, f.Deployed)
}
