// Package inject adds the sidebar container and its toggle to a host page
// and tracks whether the sidebar is showing.
package inject

import (
	"embed"
	"fmt"
	"html"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const (
	ContainerID = "sheetchat-sidebar-container"
	ToggleID    = "sheetchat-toggle"
	FrameID     = "sheetchat-frame"
)

//go:embed assets
var assets embed.FS

// Assets is the bundled sidebar UI, rooted at the assets directory.
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Inject adds the sidebar container, its frame and the toggle button to
// page. Pages that already carry the container are returned unchanged and
// injected is false.
func Inject(page io.Reader, assetsURL string) (out string, injected bool, err error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return "", false, err
	}
	if doc.Find("#"+ContainerID).Length() > 0 {
		out, err = doc.Html()
		return out, false, err
	}

	src := html.EscapeString(strings.TrimRight(assetsURL, "/") + "/sidebar.html")
	doc.Find("body").AppendHtml(fmt.Sprintf(
		`<div id="%s" style="display:none;position:fixed;top:0;right:0;width:360px;height:100%%;z-index:9999">`+
			`<iframe id="%s" src="%s" style="border:0;width:100%%;height:100%%"></iframe></div>`+
			`<button id="%s" type="button" style="position:fixed;bottom:16px;right:16px;z-index:10000">Sheet Chat</button>`,
		ContainerID, FrameID, src, ToggleID,
	))
	out, err = doc.Html()
	return out, err == nil, err
}

// Sidebar is the show/hide state of the injected container.
type Sidebar struct {
	mu      sync.Mutex
	visible bool
}

// Toggle flips visibility and returns the new state.
func (s *Sidebar) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = !s.visible
	return s.visible
}

func (s *Sidebar) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
