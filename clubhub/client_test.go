package clubhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/rollcall/checkin"
)

func TestListAccountsPagesUntilExhausted(t *testing.T) {
	const totalMembers = 5
	const pageSize = 2

	var requests []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		require.Equal(t, pageSize, limit)

		var members []memberRecord
		for i := offset; i < offset+limit && i < totalMembers; i++ {
			members = append(members, memberRecord{
				ID:            fmt.Sprintf("m%d", i),
				FirstName:     "Member",
				LastName:      fmt.Sprintf("%d", i),
				StatusMessage: "Active",
			})
		}
		json.NewEncoder(w).Encode(membersPage{Members: members, Total: totalMembers})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, Token: "test-token", PageSize: pageSize})

	accounts, err := client.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, totalMembers)
	assert.Equal(t, "m0", accounts[0].ID)
	assert.Equal(t, "Member 4", accounts[4].Name())
	assert.Len(t, requests, 3, "5 members at page size 2 takes 3 requests")
}

func TestListAccountsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	_, err := client.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSubmitSendsUsagePayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, Token: "test-token"})

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	err := client.Submit(context.Background(), "m42", at, checkin.Visit{ClubID: 7, DoorID: 3, Manual: true})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/members/m42/usages", gotPath)
	assert.Equal(t, "2025-03-14T09:26:53", gotBody["date"])
	assert.Equal(t, true, gotBody["manual"])
	assert.Equal(t, float64(3), gotBody["door"].(map[string]interface{})["id"])
	assert.Equal(t, float64(7), gotBody["club"].(map[string]interface{})["id"])
}

func TestSubmitRejectionSurfacesStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member not checked in: no active contract", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	err := client.Submit(context.Background(), "m42", time.Now(), checkin.Visit{ClubID: 7, DoorID: 3, Manual: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "no active contract")
}
