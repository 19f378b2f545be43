package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
)

func newTestREST(t *testing.T, handler http.HandlerFunc) *resttransport.Transport {
	t.Helper()
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	t.Cleanup(authSrv.Close)
	apiSrv := httptest.NewServer(handler)
	t.Cleanup(apiSrv.Close)

	tm := auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	return resttransport.New(apiSrv.URL, nil, tm, limiter, nil)
}

func TestRESTDefinitionLoaderBuildsSummaries(t *testing.T) {
	rest := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/automation/v1/queries", r.URL.Path)
		w.Write([]byte(`{"items":[
			{"queryDefinitionId":"q-1","name":"Nightly dedupe"},
			{"queryDefinitionId":"q-2","name":"Weekly rollup"},
			{"name":"missing id"}
		]}`))
	})

	mgr := cache.New(nil)
	RegisterDefinitionLoaders(mgr, rest, nil)

	v, ok, err := mgr.Get(context.Background(), cache.KindQueryByID, "q-1")
	require.NoError(t, err)
	require.True(t, ok)
	summary, isSummary := v.(model.Summary)
	require.True(t, isSummary)
	assert.Equal(t, model.ObjectQuery, summary.Type)
	assert.Equal(t, "Nightly dedupe", summary.Name)

	stats := mgr.StatsFor(cache.KindQueryByID)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, 1, stats.UnresolvedReferences)
}

func TestLookupName(t *testing.T) {
	mgr := cache.New(nil)
	mgr.Register(cache.KindEmailByID, func(ctx context.Context) (map[string]interface{}, int, error) {
		return map[string]interface{}{
			"e-1": model.Summary{Type: model.ObjectEmail, ID: "e-1", Name: "Welcome"},
		}, 0, nil
	})

	assert.Equal(t, "Welcome", lookupName(context.Background(), mgr, cache.KindEmailByID, "e-1"))
	assert.Empty(t, lookupName(context.Background(), mgr, cache.KindEmailByID, "e-unknown"))
	assert.Empty(t, lookupName(context.Background(), mgr, cache.KindEmailByID, ""))
	assert.Empty(t, lookupName(context.Background(), nil, cache.KindEmailByID, "e-1"))
}
