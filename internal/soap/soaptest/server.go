// Package soaptest provides an in-process SOAP calculator for tests.
package soaptest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
)

var operandRe = regexp.MustCompile(`<intA>(-?\d+)</intA>\s*<intB>(-?\d+)</intB>`)

// Handler mimics the public calculator closely enough for soap.Client:
// integer arithmetic, truncating division and a server fault on divide by
// zero.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m := operandRe.FindSubmatch(body)
		if m == nil {
			WriteFault(w, "soap:Client", "Server was unable to read request.")
			return
		}
		a, _ := strconv.ParseInt(string(m[1]), 10, 64)
		b, _ := strconv.ParseInt(string(m[2]), 10, 64)

		var op string
		var v int64
		switch r.Header.Get("SOAPAction") {
		case `"http://tempuri.org/Add"`:
			op, v = "Add", a+b
		case `"http://tempuri.org/Subtract"`:
			op, v = "Subtract", a-b
		case `"http://tempuri.org/Multiply"`:
			op, v = "Multiply", a*b
		case `"http://tempuri.org/Divide"`:
			if b == 0 {
				WriteFault(w, "soap:Server", "System.DivideByZeroException: Attempted to divide by zero.")
				return
			}
			op, v = "Divide", a/b
		default:
			WriteFault(w, "soap:Client", "Unknown SOAPAction")
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><%[1]sResponse xmlns="http://tempuri.org/"><%[1]sResult>%[2]d</%[1]sResult></%[1]sResponse></soap:Body></soap:Envelope>`, op, v)
	})
}

// NewServer starts Handler; the caller closes it.
func NewServer() *httptest.Server {
	return httptest.NewServer(Handler())
}

// WriteFault writes a SOAP 1.1 fault with status 500.
func WriteFault(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><soap:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring></soap:Fault></soap:Body></soap:Envelope>`, code, msg)
}
