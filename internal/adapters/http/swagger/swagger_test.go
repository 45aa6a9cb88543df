package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegister(t *testing.T) {
	Convey("Given a mux with the docs routes registered", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		Convey("When fetching the OpenAPI document", func() {
			resp, err := http.Get(ts.URL + "/openapi.yaml")

			Convey("Then the embedded YAML is served", func() {
				So(err, ShouldBeNil)
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "yaml")
				So(len(OpenAPI), ShouldBeGreaterThan, 0)
				So(strings.HasPrefix(string(OpenAPI), "openapi:"), ShouldBeTrue)
			})
		})

		Convey("When fetching the docs page", func() {
			resp, err := http.Get(ts.URL + "/api-docs")

			Convey("Then the ReDoc HTML is served", func() {
				So(err, ShouldBeNil)
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/html")
			})
		})
	})
}
