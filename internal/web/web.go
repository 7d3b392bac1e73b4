// Package web embeds the browser control page.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
