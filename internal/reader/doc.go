// Package reader implements the document reading engine used by rentshelf
// readers: the session controller (load lifecycle, zoom), the viewport
// windowing engine (which pages get full rendering, text layers, or
// placeholders), the scroll tracker (current page, fast-scroll detection,
// position persistence) and annotation capture (bookmarks and quotes).
//
// A Session is driven by its host UI. The host reports visibility ratios and
// scroll offsets, rasterizes the pages the session plans for, and reports
// render completions with the ticket it was handed. Every asynchronous
// operation is tagged with the session Generation it was started under; a
// completion from an older generation is discarded.
package reader
