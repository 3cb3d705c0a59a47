package scheduler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inSessionResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <ns1:isUserInQueueResponse xmlns:ns1="http://remotelabs.eng.uts.edu.au/schedserver/queuer">
      <queuedResource>
        <inQueue>false</inQueue>
        <inSession>true</inSession>
      </queuedResource>
    </ns1:isUserInQueueResponse>
  </soapenv:Body>
</soapenv:Envelope>`

func TestSOAPClient(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		assert.Equal(t, "urn:isUserInQueue", r.Header.Get("SOAPAction"))
		_, _ = io.WriteString(w, inSessionResponse)
	}))
	defer srv.Close()

	c := NewSOAPClient(Config{Endpoint: srv.URL})
	status, err := c.IsUserInQueue(context.Background(), "uni:jdoe")
	require.NoError(t, err)
	assert.Equal(t, QueueStatus{InQueue: false, InSession: true}, status)
	assert.Contains(t, gotBody, "<userQName>uni:jdoe</userQName>")
	assert.Contains(t, gotBody, "isUserInQueue")
}

func TestSOAPClientFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<Envelope><Body><Fault><faultstring>boom</faultstring></Fault></Body></Envelope>`)
	}))
	defer srv.Close()

	_, err := NewSOAPClient(Config{Endpoint: srv.URL}).IsUserInQueue(context.Background(), "uni:jdoe")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSOAPClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSOAPClient(Config{Endpoint: srv.URL}).IsUserInQueue(context.Background(), "uni:jdoe")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSOAPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewSOAPClient(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.IsUserInQueue(context.Background(), "uni:jdoe")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseQueueStatus(t *testing.T) {
	status, err := parseQueueStatus([]byte(strings.ReplaceAll(inSessionResponse, "ns1:", "q:")))
	require.NoError(t, err)
	assert.True(t, status.InSession)

	_, err = parseQueueStatus([]byte(`<Envelope><Body/></Envelope>`))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewDisabled(t *testing.T) {
	c := New(Config{})
	status, err := c.IsUserInQueue(context.Background(), "uni:jdoe")
	require.NoError(t, err)
	assert.Equal(t, QueueStatus{}, status)
}
