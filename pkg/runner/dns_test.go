package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyberedu/rangectl/pkg/connector"
)

func TestDefaultRunner_DigResolve(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("dig +short", "cname.example.edu.\n203.0.113.10\n203.0.113.11\n")
	ips, err := rnr.DigResolve(context.Background(), mockConn, "labs.example.edu", DNSLookupOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.10", "203.0.113.11"}, ips)
	assert.Contains(t, mockConn.LastExecCmd, "'labs.example.edu' A")
}

func TestDefaultRunner_DigResolveEmpty(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("dig +short", "")
	ips, err := rnr.DigResolve(context.Background(), mockConn, "unpropagated.example.edu", DNSLookupOptions{})
	assert.NoError(t, err)
	assert.Empty(t, ips)
}

func TestDefaultRunner_NslookupResolve(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	out := `Server:		192.168.1.1
Address:	192.168.1.1#53

Non-authoritative answer:
Name:	labs.example.edu
Address: 203.0.113.10
`
	mockConn.StubCommand("nslookup", out)
	ips, err := rnr.NslookupResolve(context.Background(), mockConn, "labs.example.edu", DNSLookupOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.10"}, ips)
}

func TestParseNslookupOutput_SkipsResolverHeader(t *testing.T) {
	out := "Server: 10.0.0.1\nAddress: 10.0.0.1#53\n"
	assert.Empty(t, parseNslookupOutput(out))
}
