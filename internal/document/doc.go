/*
Package document owns the parsed markup a script session queries.

# Overview

A session parses its markup once (Load) and hands the resulting goquery
document to New. From then on the document lives in a single guarded cell:

  - Read: shared access, any number of readers at once
  - Write / Manipulate: exclusive access, blocks every reader and writer
  - Handle: a counted reference for capture inside native callbacks

Native functions registered into the script runtime outlive the call that
registered them, so each one captures its own Handle. The document is dropped
when the last handle is released; nothing is leaked per session.

# Poisoning

A panic inside Manipulate (or an explicit WriteGuard.Poison) marks the cell
as poisoned. Every later acquisition returns ErrGuardPoisoned. Callers treat
this as fatal for the session and never retry.

# Usage

	doc, err := document.Load(markup)
	if err != nil {
		return err
	}
	shared := document.New(doc)
	defer shared.Release()

	title, err := document.Manipulate(shared, func(d *goquery.Document) string {
		d.Find("h1").SetText("Updated")
		return d.Find("h1").Text()
	})
*/
package document
