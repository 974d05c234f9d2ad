// Package channel manages output-format profiles. A channel declares
// what a delivery surface can render (capability flags), which artifact
// types it accepts, and any message constraints.
package channel

// Capability describes one feature a channel may support.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Supported   bool   `json:"supported"`
}

// Constraints holds per-channel message limits.
type Constraints struct {
	// MaxMessageLength of 0 means unconstrained.
	MaxMessageLength int `json:"maxMessageLength,omitempty"`
}

// Channel is a named output-format profile, immutable after load.
type Channel struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Capabilities  map[string]Capability `json:"capabilities"`
	ArtifactTypes []string              `json:"artifactTypes"`
	Constraints   Constraints           `json:"constraints"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
}

// SupportsArtifact reports whether the channel accepts an artifact type.
func (c *Channel) SupportsArtifact(artifactType string) bool {
	for _, t := range c.ArtifactTypes {
		if t == artifactType {
			return true
		}
	}
	return false
}

// Builtins returns the built-in channel catalog.
func Builtins() []*Channel {
	return []*Channel{
		{
			ID:          "web",
			Name:        "Web Interface",
			Description: "Standard web chat interface with HTML/CSS/JS support",
			Capabilities: map[string]Capability{
				"rich_text":   {Name: "Rich Text", Description: "HTML formatting support", Supported: true},
				"file_upload": {Name: "File Upload", Description: "File attachment support", Supported: true},
				"real_time":   {Name: "Real-time Updates", Description: "WebSocket support", Supported: true},
				"custom_ui":   {Name: "Custom UI", Description: "Custom HTML components", Supported: true},
			},
			ArtifactTypes: []string{"html", "css", "javascript", "json"},
			Metadata:      map[string]string{"color": "#007bff", "icon": "globe"},
		},
		{
			ID:          "slack",
			Name:        "Slack",
			Description: "Slack workspace integration with Block Kit support",
			Capabilities: map[string]Capability{
				"blocks":         {Name: "Block Kit", Description: "Slack Block Kit UI", Supported: true},
				"threads":        {Name: "Threads", Description: "Threaded conversations", Supported: true},
				"reactions":      {Name: "Reactions", Description: "Emoji reactions", Supported: true},
				"slash_commands": {Name: "Slash Commands", Description: "Slack slash commands", Supported: true},
			},
			ArtifactTypes: []string{"blocks", "attachments", "modals"},
			Constraints:   Constraints{MaxMessageLength: 40000},
			Metadata:      map[string]string{"color": "#4A154B", "icon": "chat"},
		},
		{
			ID:          "teams",
			Name:        "Microsoft Teams",
			Description: "Teams integration with Adaptive Cards and bot framework",
			Capabilities: map[string]Capability{
				"adaptive_cards": {Name: "Adaptive Cards", Description: "Teams Adaptive Cards", Supported: true},
				"task_modules":   {Name: "Task Modules", Description: "Teams task modules", Supported: true},
				"bot_framework":  {Name: "Bot Framework", Description: "Microsoft Bot Framework", Supported: true},
				"tabs":           {Name: "Tabs", Description: "Teams tabs integration", Supported: true},
			},
			ArtifactTypes: []string{"adaptive_cards", "task_modules", "bot_activities"},
			Constraints:   Constraints{MaxMessageLength: 28000},
			Metadata:      map[string]string{"color": "#6264A7", "icon": "office"},
		},
		{
			ID:          "discord",
			Name:        "Discord",
			Description: "Discord bot integration with embeds and slash commands",
			Capabilities: map[string]Capability{
				"embeds":         {Name: "Embeds", Description: "Discord rich embeds", Supported: true},
				"slash_commands": {Name: "Slash Commands", Description: "Discord slash commands", Supported: true},
				"reactions":      {Name: "Reactions", Description: "Emoji reactions", Supported: true},
				"voice":          {Name: "Voice", Description: "Voice channel support", Supported: false},
			},
			ArtifactTypes: []string{"embeds", "slash_commands", "components"},
			Constraints:   Constraints{MaxMessageLength: 2000},
			Metadata:      map[string]string{"color": "#5865F2", "icon": "game"},
		},
		{
			ID:          "twitch",
			Name:        "Twitch",
			Description: "Twitch chat integration with streamer tools",
			Capabilities: map[string]Capability{
				"chat_commands": {Name: "Chat Commands", Description: "Twitch chat commands", Supported: true},
				"extensions":    {Name: "Extensions", Description: "Twitch extensions", Supported: false},
				"moderation":    {Name: "Moderation", Description: "Chat moderation tools", Supported: false},
				"alerts":        {Name: "Alerts", Description: "Stream alerts", Supported: false},
			},
			ArtifactTypes: []string{"chat_commands", "extensions"},
			Constraints:   Constraints{MaxMessageLength: 500},
			Metadata:      map[string]string{"color": "#9146FF", "icon": "stream"},
		},
		{
			ID:          "whatsapp",
			Name:        "WhatsApp",
			Description: "WhatsApp Business API integration",
			Capabilities: map[string]Capability{
				"media":         {Name: "Media", Description: "Image/video support", Supported: true},
				"templates":     {Name: "Templates", Description: "Message templates", Supported: true},
				"quick_replies": {Name: "Quick Replies", Description: "Quick reply buttons", Supported: true},
				"location":      {Name: "Location", Description: "Location sharing", Supported: false},
			},
			ArtifactTypes: []string{"templates", "media", "interactive"},
			Constraints:   Constraints{MaxMessageLength: 4096},
			Metadata:      map[string]string{"color": "#25D366", "icon": "mobile"},
		},
		{
			ID:          "apple-business-chat",
			Name:        "Apple Business Chat",
			Description: "Apple Business Chat integration for iOS users",
			Capabilities: map[string]Capability{
				"rich_links":   {Name: "Rich Links", Description: "Rich link previews", Supported: true},
				"payments":     {Name: "Payments", Description: "Apple Pay integration", Supported: false},
				"scheduling":   {Name: "Scheduling", Description: "Calendar scheduling", Supported: false},
				"file_sharing": {Name: "File Sharing", Description: "File sharing support", Supported: true},
			},
			ArtifactTypes: []string{"rich_links", "interactive_messages", "payments"},
			Metadata:      map[string]string{"color": "#000000", "icon": "apple"},
		},
	}
}
