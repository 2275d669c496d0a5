package endpoints

import (
	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/library"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// DefraContainer is nil when the server talks to an external DefraDB.
	DefraContainer *defra.Container
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraContainer: cfg.DefraContainer},

		// Catalog
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&UploadBookEndpoint{},
		&DocumentEndpoint{},
		&LayoutEndpoint{},
		&PageTextEndpoint{},

		// Rentals
		&RentEndpoint{},
		&ReturnEndpoint{},
		&AccessEndpoint{},

		// Reading position
		&GetPositionEndpoint{},
		&SavePositionEndpoint{},
	}
	for _, kind := range []library.Kind{library.KindBookmark, library.KindQuote} {
		eps = append(eps,
			&ListAnnotationsEndpoint{Kind: kind},
			&CreateAnnotationEndpoint{Kind: kind},
			&DeleteAnnotationEndpoint{Kind: kind},
		)
	}
	return eps
}
