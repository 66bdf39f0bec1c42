package provider

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// DocumentPage is the extracted plain text of one page of a document.
type DocumentPage struct {
	Number int
	Text   string
}
