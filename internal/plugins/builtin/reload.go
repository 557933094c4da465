package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins"
)

// ReloadName is the name of the dev reload plugin.
const ReloadName = "folio:reload"

// DefaultReloadEndpoint is the websocket path the dev server listens on.
const DefaultReloadEndpoint = "/__folio/ws"

// Reload contributes the browser side of live reload in dev mode: a small
// client that listens on the dev server websocket, reloads on
// {"type":"reload"} and shows an overlay on {"type":"error"}.
type Reload struct {
	endpoint string
}

// NewReload returns the reload plugin.
func NewReload() *Reload {
	return &Reload{endpoint: DefaultReloadEndpoint}
}

func newReloadFromOptions(options map[string]interface{}) (plugins.Plugin, error) {
	r := NewReload()
	if v, ok := options["endpoint"]; ok {
		endpoint := cast.ToString(v)
		if !strings.HasPrefix(endpoint, "/") {
			return nil, fmt.Errorf("endpoint %q must start with /", endpoint)
		}
		r.endpoint = endpoint
	}
	return r, nil
}

func (r *Reload) Name() string { return ReloadName }

// Endpoint returns the websocket path the client connects to.
func (r *Reload) Endpoint() string { return r.endpoint }

// ClientAppSetupFiles writes the reload client into the temp directory. It
// contributes nothing outside of dev.
func (r *Reload) ClientAppSetupFiles(_ context.Context, app plugins.App) ([]string, error) {
	if !app.Env().IsDev {
		return nil, nil
	}

	file := filepath.Join(app.Dirs().Temp, "client", "reload.js")
	if err := app.Fs().MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("creating client dir: %w", err)
	}
	script := r.script(paths.WithBase(app.Site().BaseURL, r.endpoint))
	if err := afero.WriteFile(app.Fs(), file, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("writing reload client: %w", err)
	}
	return []string{file}, nil
}

func (r *Reload) script(endpoint string) string {
	return fmt.Sprintf(reloadClient, endpoint)
}

const reloadClient = `// generated by folio
(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var endpoint = %q;
  var overlay;

  function showError(message) {
    if (!overlay) {
      overlay = document.createElement("pre");
      overlay.id = "folio-error-overlay";
      overlay.style.cssText = "position:fixed;inset:0;margin:0;padding:2em;background:rgba(0,0,0,.85);color:#ff5555;z-index:99999;white-space:pre-wrap;overflow:auto";
      document.body.appendChild(overlay);
    }
    overlay.textContent = message;
  }

  function connect() {
    var ws = new WebSocket(proto + "//" + location.host + endpoint);
    ws.onmessage = function (event) {
      var msg;
      try { msg = JSON.parse(event.data); } catch (e) { return; }
      if (msg.type === "reload") {
        location.reload();
      } else if (msg.type === "error") {
        showError(msg.message || "build failed");
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }

  connect();
})();
`
