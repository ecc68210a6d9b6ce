package platforms

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// Registry holds one client per platform. Clients are constructed once
// at startup and injected wherever needed.
type Registry struct {
	clients map[models.Platform]interfaces.PlatformClient
}

var _ interfaces.PlatformRegistry = (*Registry)(nil)

// NewRegistry builds clients for all supported platforms from config.
func NewRegistry(cfg *common.PlatformsConfig, logger arbor.ILogger) *Registry {
	return &Registry{
		clients: map[models.Platform]interfaces.PlatformClient{
			models.PlatformYouTube:   NewYouTubeClient(cfg.YouTube, logger),
			models.PlatformInstagram: NewInstagramClient(cfg.Instagram, logger),
			models.PlatformTwitter:   NewTwitterClient(cfg.Twitter, logger),
			models.PlatformTikTok:    NewTikTokClient(cfg.TikTok, logger),
			models.PlatformFacebook:  NewFacebookClient(cfg.Facebook, logger),
		},
	}
}

// Get returns the client for a platform.
func (r *Registry) Get(platform models.Platform) (interfaces.PlatformClient, error) {
	client, ok := r.clients[platform]
	if !ok {
		return nil, fmt.Errorf("no client registered for platform: %s", platform)
	}
	return client, nil
}

// All returns every registered client in no particular order.
func (r *Registry) All() []interfaces.PlatformClient {
	clients := make([]interfaces.PlatformClient, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}
