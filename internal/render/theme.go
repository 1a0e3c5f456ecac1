package render

// Theme holds colors for graph and page rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by call provenance.
	EdgeDirect     string // BL to a named symbol
	EdgeStub       string // BL to an unnamed address
	EdgeJNI        string // BLR through the JNIEnv function table
	EdgeUnresolved string // BLR without provenance

	// Node accents.
	StubFill     string // unnamed targets (sub_xxx)
	ExternalText string // targets outside the analyzed methods

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string

	// Page styling for highlighted listings.
	CodeBackground string
	CodeText       string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeDirect:     "#424242", // dark gray
	EdgeStub:       "#00695C", // teal
	EdgeJNI:        "#0B3D91", // NASA blue
	EdgeUnresolved: "#FC3D21", // NASA red

	StubFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",

	CodeBackground: "#FFFFFF",
	CodeText:       "#1A1A1A",
}
