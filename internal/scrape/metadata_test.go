package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
  <title> Example Post </title>
  <meta name="description" content="A page about things.">
  <link rel="icon" href="/static/fav.png">
</head><body><p>hi</p></body></html>`

func TestPageSniffer_Sniff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	s := NewPageSniffer()
	meta, err := s.Sniff(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, "Example Post", meta.Title)
	assert.Equal(t, "A page about things.", meta.Description)
	assert.Equal(t, srv.URL+"/static/fav.png", meta.FaviconURL)
}

func TestPageSniffer_OGDescriptionFallback(t *testing.T) {
	page := `<html><head>
	  <meta name="description" content="">
	  <meta property="og:description" content="From open graph.">
	</head><body></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	s := NewPageSniffer()
	meta, err := s.Sniff(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "From open graph.", meta.Description)
}

func TestPageSniffer_DefaultFavicon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head><title>T</title></head><body></body></html>")
	}))
	defer srv.Close()

	s := NewPageSniffer()
	meta, err := s.Sniff(context.Background(), srv.URL+"/deep/path")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/favicon.ico", meta.FaviconURL)
}

func TestPageSniffer_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewPageSniffer()
	_, err := s.Sniff(context.Background(), srv.URL)
	require.Error(t, err)
}
