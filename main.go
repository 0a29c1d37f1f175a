// main.go (Wails)
package main

import (
	"embed"
	"log"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"election_board/pkg/display"
)

//go:embed frontend/dist
var assets embed.FS

func main() {
	// Create an instance of the app structure
	app := NewApp()

	// Create application with options
	err := wails.Run(&options.App{
		Title:            app.config.Display.Title,
		Width:            1920,
		Height:           1080,
		MinWidth:         1280,
		MinHeight:        720,
		BackgroundColour: &options.RGBA{R: 24, G: 24, B: 27, A: 255},

		// Asset configuration
		// frontend/dist first, then the board's /static/ assets
		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: display.AssetHandler(app.config.Server.StaticDir),
		},

		// Bind our application struct
		Bind: []interface{}{
			app,
		},

		// Application lifecycle
		OnStartup:     app.startup,
		OnDomReady:    app.domReady,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,

		LogLevel: determineLogLevel(app.config.IsDevelopment()),

		// Window configuration
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
			DisableWindowIcon:    false,
		},

		// Mac configuration
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				HideTitleBar:               false,
				FullSizeContent:            true,
				UseToolbar:                 false,
				HideToolbarSeparator:       true,
			},
			About: &mac.AboutInfo{
				Title:   "Election Board",
				Message: "Live election results display",
			},
		},
	})

	if err != nil {
		log.Fatal(err)
	}
}

func determineLogLevel(development bool) logger.LogLevel {
	if development {
		return logger.DEBUG
	}
	return logger.WARNING
}
