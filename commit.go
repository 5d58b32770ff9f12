package chasm

import "time"

// Audit is a name plus timestamp record attached to a commit as its author
// or committer. The timestamp carries its own UTC offset, so it is
// represented as ticks since the Unix epoch plus an offset in ticks rather
// than relying on the local process's timezone.
type Audit struct {
	// Name may be empty.
	Name string
	// Ticks is the timestamp, in 100-nanosecond ticks since the Unix epoch.
	Ticks int64
	// OffsetTicks is the UTC offset of the timestamp, also in ticks.
	OffsetTicks int64
}

// ticksPerSecond mirrors the .NET-style tick resolution (100ns) used for
// the wire representation, independent of Go's nanosecond-resolution
// time.Time.
const ticksPerSecond = 10_000_000

// NewAudit builds an Audit from a name and a time.Time, preserving the
// time's UTC offset.
func NewAudit(name string, t time.Time) Audit {
	_, offsetSeconds := t.Zone()
	return Audit{
		Name:        name,
		Ticks:       t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100,
		OffsetTicks: int64(offsetSeconds) * ticksPerSecond,
	}
}

// Time reconstructs the time.Time that a was constructed from, in its
// original UTC offset.
func (a Audit) Time() time.Time {
	seconds := a.Ticks / ticksPerSecond
	nanos := (a.Ticks % ticksPerSecond) * 100
	offsetSeconds := int(a.OffsetTicks / ticksPerSecond)
	loc := time.FixedZone("", offsetSeconds)
	return time.Unix(seconds, nanos).In(loc)
}

// Commit is an immutable record binding a tree to zero or more parent
// commits, with authorship metadata and an optional message. Parent order
// is preserved.
type Commit struct {
	Parents   []CommitId
	TreeId    TreeId
	Author    Audit
	Committer Audit
	// Message is nil when the commit has no message, as distinct from an
	// explicit empty string.
	Message *string
}

// CommitRef is the pair naming a branch's current commit id.
type CommitRef struct {
	Branch   string
	CommitId CommitId
}
