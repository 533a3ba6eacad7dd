// Package printing produces invoice documents.
//
// An InvoicePrinter fills the invoice layout from a computed invoice and its
// client, then hands the HTML to a PDFRenderer. ChromedpRenderer drives
// headless Chrome (a local process, or a remote one over DevTools) and
// prints the page with Page.printToPDF.
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{RemoteURL: cfg.PDF.RemoteURL})
//	if err != nil {
//	    return err
//	}
//	defer renderer.Close()
//
//	printer := NewInvoicePrinter(renderer, formatter, issuer)
//	pdf, err := printer.Print(ctx, view, client)
package printing
