package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbontracker/internal/assist"
	"carbontracker/internal/config"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
	"carbontracker/internal/records/memory"
)

var fixedNow = time.Date(2025, 2, 18, 12, 0, 0, 0, time.UTC)

type stubGenerator struct{ reply string }

func (g stubGenerator) Call(context.Context, assist.GenerateRequest) (string, error) {
	return g.reply, nil
}

func signedToken(t *testing.T, user string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cognito:username": user,
		"exp":              fixedNow.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func newTestApp(store records.Store, gen assist.Generator) *app {
	return &app{
		cfg: &config.Config{},
		now: func() time.Time { return fixedNow },
		loc: time.UTC,
		newStore: func(*config.Config) (records.Store, error) {
			return store, nil
		},
		newAssistant: func(*config.Config) (*assist.Assistant, error) {
			if gen == nil {
				return nil, errNoAssistant
			}
			return assist.NewAssistant(gen), nil
		},
	}
}

func executeCLI(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(a)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func seededStore() *memory.Store {
	store := memory.NewWithClock(func() time.Time { return fixedNow })
	store.Seed("alice",
		core.Purchase{ID: "p1", ProductName: "Laptop", PurchaseDate: "2025-01-15T10:00:00.000000", Category: core.Electronics, CarbonEmissionValue: core.ParseQuantity("10.5")},
		core.Purchase{ID: "p2", ProductName: "Shoes", PurchaseDate: "2025-02-01T09:00:00.000000", Category: core.Clothing, CarbonEmissionValue: core.ParseQuantity("4.5")},
		core.Purchase{ID: "p3", ProductName: "Tea", PurchaseDate: "", Category: core.Food, CarbonEmissionValue: core.ParseQuantity("1")},
	)
	return store
}

func TestMissingTokenFails(t *testing.T) {
	t.Setenv("CARBON_TOKEN", "")
	_, _, err := executeCLI(t, newTestApp(seededStore(), nil), "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARBON_TOKEN")
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("CARBON_TOKEN", signedToken(t, "alice"))
	stdout, _, err := executeCLI(t, newTestApp(seededStore(), nil), "summary")
	require.NoError(t, err)
	assert.Contains(t, stdout, "total: 16.00 kg CO2")
	assert.Contains(t, stdout, "purchases: 3")
	assert.Contains(t, stdout, "last month: 4.50 kg CO2")
}

func TestPurchasesListAddDelete(t *testing.T) {
	store := seededStore()
	a := newTestApp(store, nil)
	tok := signedToken(t, "alice")

	stdout, _, err := executeCLI(t, a, "--token", tok, "purchases", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Laptop")
	assert.Contains(t, stdout, "unknown")

	stdout, _, err = executeCLI(t, a, "--token", tok, "--json", "purchases", "add",
		"--name", "Desk", "--weight", "10", "--distance", "20", "--category", "Home")
	require.NoError(t, err)
	var created core.Purchase
	require.NoError(t, json.Unmarshal([]byte(stdout), &created))
	assert.Equal(t, "Desk", created.ProductName)
	assert.Equal(t, 20.0, created.Emission())

	_, _, err = executeCLI(t, a, "--token", tok, "purchases", "delete", created.ID)
	require.NoError(t, err)

	_, _, err = executeCLI(t, a, "--token", tok, "purchases", "delete", created.ID)
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestPurchasesAddValidates(t *testing.T) {
	a := newTestApp(seededStore(), nil)
	tok := signedToken(t, "alice")

	_, _, err := executeCLI(t, a, "--token", tok, "purchases", "add", "--name", "Desk", "--weight", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "distance" not set`)

	_, _, err = executeCLI(t, a, "--token", tok, "purchases", "add", "--name", "Desk", "--weight", "10", "--distance", "5", "--mode", "Rocket")
	require.ErrorIs(t, err, core.ErrInvalidDeliveryMode)
}

func TestTrendAndCategories(t *testing.T) {
	a := newTestApp(seededStore(), nil)
	tok := signedToken(t, "alice")

	stdout, _, err := executeCLI(t, a, "--token", tok, "trend", "--granularity", "monthly")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2025-01")
	assert.Contains(t, stdout, "10.50")
	assert.Contains(t, stdout, "1 purchase(s) without a readable date not shown")

	_, _, err = executeCLI(t, a, "--token", tok, "trend", "--granularity", "hourly")
	require.Error(t, err)

	stdout, _, err = executeCLI(t, a, "--token", tok, "--json", "categories")
	require.NoError(t, err)
	var totals []core.CategoryTotal
	require.NoError(t, json.Unmarshal([]byte(stdout), &totals))
	assert.Equal(t, []core.CategoryTotal{
		{Label: "Electronics", Total: 10.5},
		{Label: "Clothing", Total: 4.5},
		{Label: "Food", Total: 1},
	}, totals)
}

func TestEstimateAndTips(t *testing.T) {
	store := seededStore()
	tok := signedToken(t, "alice")

	_, _, err := executeCLI(t, newTestApp(store, nil), "--token", tok, "tips")
	require.ErrorIs(t, err, errNoAssistant)

	gen := stubGenerator{reply: `{"productName":"Coffee grinder","weight":2,"shippingDistance":600,"category":"Home"}`}
	stdout, _, err := executeCLI(t, newTestApp(store, gen), "estimate", "a", "coffee", "grinder")
	require.NoError(t, err)
	assert.Contains(t, stdout, "product: Coffee grinder")
	assert.Contains(t, stdout, "distance: 600 km")

	stdout, _, err = executeCLI(t, newTestApp(store, gen), "--token", tok, "estimate", "--save", "a coffee grinder")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged Coffee grinder")
	assert.Contains(t, stdout, "120.00 kg CO2")

	stdout, _, err = executeCLI(t, newTestApp(store, stubGenerator{reply: "Ship by ground."}), "--token", tok, "tips")
	require.NoError(t, err)
	assert.Equal(t, "Ship by ground.\n", stdout)
}
