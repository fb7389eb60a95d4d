package publish

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"publibot/internal/drive"
	logx "publibot/pkg/logx"
)

// captionPrefix marks the caption document inside an agency folder.
const captionPrefix = "caption"

// resolve walks root/<agency>/<MonthName>/<DD> and classifies its contents.
// All three levels are exact, case-sensitive name matches; a missing level
// is a classified failure, never a silent no-op.
func (p *Pipeline) resolve(ctx context.Context, job Job) (*bundle, error) {
	agencyID, err := p.store.FindByName(ctx, p.opt.RootFolderID, job.Agency, true)
	if err != nil {
		return nil, &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	if agencyID == "" {
		return nil, &Error{Kind: FailNotFound, Agency: job.Agency, Detail: job.Agency}
	}

	b := &bundle{}

	caption, err := p.readCaption(ctx, agencyID)
	if err != nil {
		return nil, &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	b.caption = caption

	monthName := p.monthName(job.Date.Month())
	if monthName == "" {
		return nil, &Error{Kind: FailMissingDatePath, Agency: job.Agency,
			Detail: fmt.Sprintf("no folder name for month %d", job.Date.Month())}
	}
	monthID, err := p.store.FindByName(ctx, agencyID, monthName, true)
	if err != nil {
		return nil, &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	if monthID == "" {
		return nil, &Error{Kind: FailMissingDatePath, Agency: job.Agency, Detail: monthName}
	}

	dayName := fmt.Sprintf("%02d", job.Date.Day())
	dayID, err := p.store.FindByName(ctx, monthID, dayName, true)
	if err != nil {
		return nil, &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	if dayID == "" {
		return nil, &Error{Kind: FailMissingDatePath, Agency: job.Agency, Detail: monthName + "/" + dayName}
	}

	children, err := p.store.ListChildren(ctx, dayID)
	if err != nil {
		return nil, &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	for _, it := range children {
		if it.IsMedia() {
			b.media = append(b.media, it)
		}
	}
	// Ordering is the operator's manual numbering convention ("1", "2", ...).
	sort.Slice(b.media, func(i, j int) bool { return b.media[i].Name < b.media[j].Name })

	if b.empty() {
		return nil, &Error{Kind: FailEmptyContent, Agency: job.Agency}
	}

	p.log.Debug("job resolved",
		logx.String("agency", job.Agency),
		logx.String("day", monthName+"/"+dayName),
		logx.Int("media", len(b.media)),
		logx.Bool("caption", b.caption != ""))
	return b, nil
}

// readCaption picks the first (by name) textual child whose name starts
// with "caption". Absent captions are fine; the media can stand alone.
func (p *Pipeline) readCaption(ctx context.Context, agencyID string) (string, error) {
	children, err := p.store.ListChildren(ctx, agencyID)
	if err != nil {
		return "", err
	}

	var candidates []drive.Item
	for _, it := range children {
		if it.IsTextual() && strings.HasPrefix(strings.ToLower(it.Name), captionPrefix) {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	text, err := p.store.ReadText(ctx, candidates[0].ID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *Pipeline) monthName(m time.Month) string {
	if int(m) < 1 || int(m) > len(p.opt.MonthNames) {
		return ""
	}
	return p.opt.MonthNames[m-1]
}
