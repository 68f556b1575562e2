// Package notify fans out tag index changes to presentation clients.
//
// Each subscriber keeps at most one pending snapshot and one pending
// warning. A newer snapshot replaces an undelivered older one, since only
// the latest state matters to a gallery view, so a slow client never stalls
// the reconciler.
package notify
