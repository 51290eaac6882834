package connection

import "net/http"

// applyProxyAuth attaches the Proxy-Authorization header to every tunnel
// the transport opens through the proxy.
//
// The header is fixed at construction through ProxyConnectHeader, so it is
// present on the very first CONNECT.
func applyProxyAuth(transport *http.Transport, proxyAuth string) {
	if transport.ProxyConnectHeader == nil {
		transport.ProxyConnectHeader = http.Header{}
	}
	transport.ProxyConnectHeader.Set("Proxy-Authorization", proxyAuth)
}
