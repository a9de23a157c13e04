// Package filter provides a worked-example Filtering stage driven by a
// validate.Sequence of simple attribute-match rules, demonstrating the
// CONTINUE/DONE validator shape wired into the core's filtering stage
// shape. It also demonstrates the composite identification strategy's
// extra field by tagging survivors with a registration authority drawn
// from the matched rule, via meta.RegistrationAuthority.
package filter

import (
	"context"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/validate"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/xmlpayload"
)

// Rule matches an attribute on an element and, when it matches, supplies
// the registration authority that should be attached to the surviving
// item. An empty authority means "match, but don't tag."
type Rule struct {
	Attr      string
	Value     string
	Authority string
}

// matches reports whether el carries Attr set to Value.
func (r Rule) matches(el *xmlpayload.Element) bool {
	v, ok := el.Attr(r.Attr)
	return ok && v == r.Value
}

// newValidator adapts a Rule into a validate.Validator that keeps
// traversing (Continue) on no match, and stops the sequence (Done) with
// no error on a match, having tagged the item first. A Rule never
// rejects an item outright; composition of Rules into "keep only if
// nothing matches" or "keep only if something matches" is the caller's
// to build from Sequence's outcome.
func newValidator(r Rule) validate.Validator[*xmlpayload.Element, *xmlpayload.Element] {
	return validate.Func[*xmlpayload.Element, *xmlpayload.Element](
		func(el *xmlpayload.Element, item *meta.Item[*xmlpayload.Element], source string) (validate.Outcome, error) {
			if !r.matches(el) {
				return validate.Continue, nil
			}
			if r.Authority != "" {
				item.Metadata().Add(meta.NewRegistrationAuthority(r.Authority))
			}
			return validate.Done, nil
		})
}

// NewStage builds a Filtering stage that keeps an item only when its
// root element matches at least one rule in rules, evaluated in order
// via a validate.Sequence. A matching rule's Authority, if set, is
// recorded as a meta.RegistrationAuthority on the item before it is
// kept — the identification strategy passed to NewStage can then surface
// that authority as the composite label's "extra" component.
func NewStage(id string, rules []Rule, identifier identify.Strategy[*xmlpayload.Element]) *stage.Filtering[*xmlpayload.Element] {
	validators := make([]validate.Validator[*xmlpayload.Element, *xmlpayload.Element], len(rules))
	for i, r := range rules {
		validators[i] = newValidator(r)
	}
	seq := validate.NewSequence[*xmlpayload.Element, *xmlpayload.Element](id+".rules", validators...)

	return stage.NewFiltering[*xmlpayload.Element](id, "stage.Filter", func(ctx context.Context, item *meta.Item[*xmlpayload.Element]) (bool, error) {
		outcome, err := seq.Run(item.Payload(), item, id)
		if err != nil {
			return false, err
		}
		return outcome == validate.Done, nil
	}, identifier)
}

// RegistrationAuthorityParts builds a PartsFunc suitable for
// identify.NewComposite, rendering an item's first ItemID as the basic
// label and any attached RegistrationAuthority as the extra component.
func RegistrationAuthorityParts(basic identify.Strategy[*xmlpayload.Element]) identify.PartsFunc[*xmlpayload.Element] {
	return func(item *meta.Item[*xmlpayload.Element]) (*string, *string) {
		b := basic.Label(item)
		var extra *string
		if ras := meta.All[meta.RegistrationAuthority](item.Metadata()); len(ras) > 0 {
			v := ras[0].Value()
			extra = &v
		}
		return &b, extra
	}
}
