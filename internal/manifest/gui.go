package manifest

// GuiFileAssociation declares a MIME type and its associated file
// extensions that a GUI app should be registered to handle.
type GuiFileAssociation struct {
	MimeType   string   `toml:"mime_type"`
	Extensions []string `toml:"extensions"`
}

// GuiProtocol declares a URL scheme (e.g. "myapp") a GUI app registers a
// handler for.
type GuiProtocol struct {
	Scheme string `toml:"scheme"`
}

// GuiApp describes one GUI application exposed by an artifact: a launcher,
// an icon, and optional file/protocol handler registrations.
type GuiApp struct {
	AppID            string               `toml:"app_id"`
	DisplayName      string               `toml:"display_name"`
	Exec             string               `toml:"exec"`
	Icon             string               `toml:"icon,omitempty"`
	Categories       []string             `toml:"categories,omitempty"`
	FileAssociations []GuiFileAssociation `toml:"file_associations,omitempty"`
	Protocols        []GuiProtocol        `toml:"protocols,omitempty"`
}
