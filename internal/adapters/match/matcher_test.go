package match_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pricepulse/internal/adapters/match"
	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestSearchQuery(t *testing.T) {
	Convey("Given raw listing titles", t, func() {
		Convey("When reducing them to search queries", func() {
			So(match.SearchQuery("Samsung Galaxy M34 5G (Midnight Blue, 128GB)"),
				ShouldEqual, "samsung galaxy m34 5g 128gb")
			So(match.SearchQuery("  Sony WH-1000XM4 "),
				ShouldEqual, "sony wh 1000xm4")
			So(match.SearchQuery(""), ShouldEqual, "")
		})

		Convey("When the title is very long", func() {
			q := match.SearchQuery("one two three four five six seven eight nine ten")

			Convey("Then only the leading tokens survive", func() {
				So(q, ShouldEqual, "one two three four five six seven eight")
			})
		})
	})
}

func TestFindMatches(t *testing.T) {
	Convey("Given a matcher pointed at a fake search page", t, func() {
		ctx := context.Background()

		const page = `<html><body>
			<div class="s-result-item" data-asin="B0FAKE">
				<h2><a href="/dp/B0FAKE">Fake result</a></h2>
			</div>
		</body></html>`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		// Route every search to the fake server regardless of host.
		transport := &http.Client{
			Transport: roundTripTo(srv.URL),
		}
		m := match.NewSearchMatcher(match.WithHTTPClient(transport))

		Convey("When searching for a Flipkart-native product", func() {
			product := model.TrackedProduct{
				Name:     "Sony WH-1000XM4",
				Platform: "Flipkart",
			}
			matches := m.FindMatches(ctx, product)

			Convey("Then the native platform is excluded and the first link is returned", func() {
				So(len(matches), ShouldEqual, 1)
				So(matches[0].Platform, ShouldEqual, "Amazon")
				So(matches[0].URL, ShouldEqual, "https://www.amazon.in/dp/B0FAKE")
			})
		})

		Convey("When the product has no name", func() {
			matches := m.FindMatches(ctx, model.TrackedProduct{Platform: "Amazon"})

			Convey("Then no searches are attempted", func() {
				So(matches, ShouldBeNil)
			})
		})
	})
}

// roundTripTo rewrites every request to the given base URL, preserving the
// path, so tests never touch real platforms.
func roundTripTo(base string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		target, err := url.Parse(base)
		if err != nil {
			return nil, err
		}
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		return http.DefaultTransport.RoundTrip(req)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
