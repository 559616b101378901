package scl

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// FcdaOrExtRefTitle builds the display title shared by FCDA and ExtRef
// elements: "<ldInst> / [<prefix> ]<lnClass> <lnInst> <doName>.<daName>".
func FcdaOrExtRefTitle(el *xmlquery.Node) string {
	ldInst, hasLdInst := Attr(el, "ldInst")
	doName, hasDoName := Attr(el, "doName")
	daName, hasDaName := Attr(el, "daName")

	var b strings.Builder
	b.WriteString(ldInst)
	b.WriteByte(' ')
	if hasLdInst {
		b.WriteByte('/')
	}
	if prefix := AttrOr(el, "prefix"); prefix != "" {
		b.WriteByte(' ')
		b.WriteString(prefix)
	}
	b.WriteByte(' ')
	b.WriteString(AttrOr(el, "lnClass"))
	b.WriteByte(' ')
	b.WriteString(AttrOr(el, "lnInst"))
	b.WriteByte(' ')
	b.WriteString(doName)
	if hasDoName && hasDaName {
		b.WriteByte('.')
	}
	b.WriteString(daName)

	return b.String()
}

// ExtRefControlBlockPath renders the source control block of an ExtRef as
// "[<srcPrefix> ]<srcLDInst> / <srcLNClass> <srcCBName>".
func ExtRefControlBlockPath(extRef *xmlquery.Node) string {
	var b strings.Builder
	if srcPrefix := AttrOr(extRef, "srcPrefix"); srcPrefix != "" {
		b.WriteString(srcPrefix)
		b.WriteByte(' ')
	}
	b.WriteString(AttrOr(extRef, "srcLDInst"))
	b.WriteString(" / ")
	b.WriteString(AttrOr(extRef, "srcLNClass"))
	b.WriteByte(' ')
	b.WriteString(AttrOr(extRef, "srcCBName"))
	return b.String()
}

// CbReference returns the object reference of the control block an ExtRef
// points at, as written into supervision setSrcRef values:
// "<iedName><srcPrefix><srcLDInst>/<srcLNClass>.<srcCBName>".
//
// srcLDInst falls back to ldInst and srcLNClass to LLN0 only when the
// attribute is missing; an empty attribute is kept as is.
func CbReference(extRef *xmlquery.Node) string {
	srcLDInst, ok := Attr(extRef, "srcLDInst")
	if !ok {
		srcLDInst = AttrOr(extRef, "ldInst")
	}
	srcLNClass, ok := Attr(extRef, "srcLNClass")
	if !ok {
		srcLNClass = "LLN0"
	}

	return AttrOr(extRef, "iedName") +
		AttrOr(extRef, "srcPrefix") +
		srcLDInst + "/" + srcLNClass + "." +
		AttrOr(extRef, "srcCBName")
}
