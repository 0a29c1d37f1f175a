package display

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
)

//go:embed static
var staticFS embed.FS

// AssetsPrefix is the URL path the decorative assets are served under
const AssetsPrefix = "/static/"

// layeredFS opens name from the first layer that has it
type layeredFS []fs.FS

func (l layeredFS) Open(name string) (fs.File, error) {
	for _, layer := range l {
		f, err := layer.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// AssetHandler serves the logo, elected badge and banner under
// AssetsPrefix. Files in dir take precedence over the built-in defaults;
// an empty dir serves the defaults only.
func AssetHandler(dir string) http.Handler {
	builtin, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	layers := layeredFS{builtin}
	if dir != "" {
		layers = layeredFS{os.DirFS(dir), builtin}
	}

	return http.StripPrefix(AssetsPrefix, http.FileServer(http.FS(layers)))
}
