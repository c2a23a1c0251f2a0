package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Some Channel</title>
  <entry>
    <id>yt:video:newvideo001</id>
    <yt:videoId>newvideo001</yt:videoId>
    <title>Episode 2</title>
  </entry>
  <entry>
    <id>yt:video:oldvideo001</id>
    <yt:videoId>oldvideo001</yt:videoId>
    <title>Episode 1</title>
  </entry>
  <entry>
    <id>yt:video:untitled01</id>
    <yt:videoId>untitled01</yt:videoId>
    <title></title>
  </entry>
</feed>`

func TestFetchParsesCandidatesInFeedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(channelAtom))
	}))
	defer srv.Close()

	cands, err := NewClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)

	// The untitled entry is dropped; order stays newest-first as served.
	require.Len(t, cands, 2)
	assert.Equal(t, Candidate{ID: "newvideo001", Title: "Episode 2"}, cands[0])
	assert.Equal(t, Candidate{ID: "oldvideo001", Title: "Episode 1"}, cands[1])
}

func TestFetchUnreachableFeedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestWatchURL(t *testing.T) {
	c := Candidate{ID: "abc-123"}
	assert.Equal(t, "https://www.youtube.com/watch?v=abc-123", c.WatchURL())
}
