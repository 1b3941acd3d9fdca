package app_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// fakeUpstream serves the site, token, collections and adresmatch endpoints
// from a single test server.
type fakeUpstream struct {
	server *httptest.Server

	adresmatch  string
	script      string
	collections string
	tokenStatus int

	adresmatchHits  atomic.Int32
	tokenHits       atomic.Int32
	collectionsHits atomic.Int32
}

const (
	fakeSecret = "8x5Tz1"
	fakeToken  = "eyJhbGciOi"

	cleanMatch = `{"adresMatches":[{
		"gemeente":{"objectId":"24062","gemeentenaam":{"geografischeNaam":{"spelling":"Leuven","taal":"nl"}}},
		"straatnaam":{"objectId":"5678"}}],"warnings":[]}`

	twoEvents = `{"items":[
		{"timestamp":"2024-03-12T00:00:00.000Z","type":"collection","fraction":{"name":{"nl":"Restafval","fr":"Déchets résiduels"},"color":"#000000"}},
		{"timestamp":"2024-03-14T00:00:00.000Z","type":"event","fraction":{"name":{"nl":"Infodag containerpark"}}}
	]}`
)

func newFakeUpstream() *fakeUpstream {
	f := &fakeUpstream{
		adresmatch:  cleanMatch,
		script:      `var a=1;var n="` + fakeSecret + `",c="/api/v1/assets/";`,
		collections: twoEvents,
		tokenStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/site/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><script src="/static/js/main.4c2e.chunk.js"></script></head></html>`))
	})
	mux.HandleFunc("/static/js/main.4c2e.chunk.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.script))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		if r.Header.Get("x-secret") != fakeSecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.tokenStatus)
		w.Write([]byte(`{"accessToken":"` + fakeToken + `"}`))
	})
	mux.HandleFunc("/collections", func(w http.ResponseWriter, r *http.Request) {
		f.collectionsHits.Add(1)
		if r.Header.Get("Authorization") != fakeToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(f.collections))
	})
	mux.HandleFunc("/v1/adresmatch", func(w http.ResponseWriter, r *http.Request) {
		f.adresmatchHits.Add(1)
		w.Write([]byte(f.adresmatch))
	})

	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakeUpstream) URL(path string) string {
	return f.server.URL + path
}

func (f *fakeUpstream) Close() {
	f.server.Close()
}
