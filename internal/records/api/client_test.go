package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
)

var session = auth.Session{UserID: "alice", Token: "tok-123"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/dev/", WithClock(func() time.Time {
		return time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return c
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/dev/purchase", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("UserId"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[
			{"PurchaseId":"p1","ProductName":"Laptop","PurchaseDate":"2025-01-02T08:00:00.000000","Weight":"2.5","ShippingDistance":"150","CarbonEmissionValue":"37.5"},
			{"PurchaseId":"p2","ProductName":"Tea","CarbonEmissionValue":null},
			"junk"
		]`)
	})

	got, err := c.List(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, 37.5, got[0].Emission())
	assert.Equal(t, 0.0, got[1].Emission())
}

func TestListNonArrayBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"nothing here"}`)
	})
	got, err := c.List(context.Background(), session)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"UserId":           "alice",
			"ProductName":      "Laptop",
			"Weight":           2.5,
			"ShippingDistance": 150.0,
			"DeliveryMode":     "Ground",
			"Category":         "Electronics",
		}, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"Purchase logged successfully","PurchaseId":"new-1","CarbonEmissionValue":37.5}`)
	})

	p, err := c.Create(context.Background(), session, core.PurchaseInput{
		ProductName: " Laptop ", Weight: 2.5, ShippingDistance: 150, Category: core.Electronics,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", p.ID)
	assert.Equal(t, "Laptop", p.ProductName)
	assert.Equal(t, 37.5, p.Emission())
	assert.Equal(t, "2025-04-01T10:00:00.000000", p.PurchaseDate)
}

func TestCreateRejectsInvalidInputLocally(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.Create(context.Background(), session, core.PurchaseInput{ProductName: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidWeight)
	assert.False(t, called)
}

func TestUpdateAndDelete(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			_, _ = io.WriteString(w, `{"ok":true}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	in := core.Purchase{ID: "p 1", ProductName: "Laptop"}
	out, err := c.Update(context.Background(), session, in)
	require.NoError(t, err)
	assert.Equal(t, "alice", out.UserID)
	require.NoError(t, c.Delete(context.Background(), session, "p 1"))
	assert.Equal(t, []string{"PUT /dev/purchase/p 1", "DELETE /dev/purchase/p 1"}, methods)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) { assert.ErrorIs(t, err, auth.ErrUnauthorized) }},
		{http.StatusForbidden, func(t *testing.T, err error) { assert.ErrorIs(t, err, auth.ErrUnauthorized) }},
		{http.StatusNotFound, func(t *testing.T, err error) { assert.ErrorIs(t, err, records.ErrNotFound) }},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var he *records.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, 500, he.Status)
			assert.Equal(t, "boom", he.Body)
			assert.True(t, records.Unavailable(err))
		}},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, "boom")
		})
		_, err := c.List(context.Background(), session)
		require.Error(t, err)
		tc.check(t, err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.List(context.Background(), session)
	var te *records.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, records.Unavailable(err))
}

func TestRequiresSession(t *testing.T) {
	c, err := New("http://records.test")
	require.NoError(t, err)
	_, err = c.List(context.Background(), auth.Session{})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	_, err = New("not a url")
	assert.Error(t, err)
}
