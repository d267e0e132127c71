package soap_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/soap"
	"github.com/signalnine/calcbench/internal/soap/soaptest"
)

func TestClientOperations(t *testing.T) {
	srv := soaptest.NewServer()
	defer srv.Close()
	c := soap.New(soap.Options{Endpoint: srv.URL})
	ctx := context.Background()

	tests := []struct {
		name string
		call func(context.Context, int64, int64) (int64, error)
		a, b int64
		want int64
	}{
		{"add", c.Add, 2, 3, 5},
		{"subtract", c.Subtract, 2, 7, -5},
		{"multiply", c.Multiply, 6, 7, 42},
		{"divide truncates", c.Divide, 7, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call(ctx, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientDivideByZeroIsDeterministic(t *testing.T) {
	srv := soaptest.NewServer()
	defer srv.Close()
	c := soap.New(soap.Options{Endpoint: srv.URL})

	_, err := c.Divide(context.Background(), 1, 0)
	require.Error(t, err)
	var f *calc.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, calc.Deterministic, f.Kind)
	assert.Equal(t, "Divide", f.Op)
}

func TestClientServerErrorIsTransient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := soap.New(soap.Options{Endpoint: srv.URL}).Add(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Equal(t, calc.Transient, calc.KindOf(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestClientUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := soap.New(soap.Options{Endpoint: url}).Multiply(context.Background(), 2, 2)
	require.Error(t, err)
	assert.Equal(t, calc.Transient, calc.KindOf(err))
}

func TestDecodeResponse(t *testing.T) {
	ok := []byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><AddResponse xmlns="http://tempuri.org/"><AddResult>12</AddResult></AddResponse></soap:Body></soap:Envelope>`)
	v, err := soap.DecodeResponse("Add", http.StatusOK, ok)
	require.NoError(t, err)
	assert.EqualValues(t, 12, v)

	_, err = soap.DecodeResponse("Subtract", http.StatusOK, ok)
	assert.Equal(t, calc.Transient, calc.KindOf(err), "mismatched operation")

	_, err = soap.DecodeResponse("Add", http.StatusOK, []byte("not xml"))
	assert.Equal(t, calc.Transient, calc.KindOf(err))

	_, err = soap.DecodeResponse("Add", http.StatusBadRequest, nil)
	assert.Equal(t, calc.Deterministic, calc.KindOf(err))

	_, err = soap.DecodeResponse("Add", http.StatusTooManyRequests, nil)
	assert.Equal(t, calc.Transient, calc.KindOf(err))
}

func TestEncodeRequest(t *testing.T) {
	req := string(soap.EncodeRequest("Multiply", -4, 9))
	assert.Contains(t, req, `<Multiply xmlns="http://tempuri.org/">`)
	assert.Contains(t, req, "<intA>-4</intA>")
	assert.Contains(t, req, "<intB>9</intB>")
}
