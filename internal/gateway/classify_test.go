package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		target string
		want   PageContext
	}{
		{"/", PageContext{URL: "/", Type: PageHome}},
		{"/?s=running+shoes", PageContext{URL: "/", Type: PageSearch, Topic: "running shoes"}},
		{"/catalog?q=hats", PageContext{URL: "/catalog", Type: PageSearch, Topic: "hats"}},
		{"/search/winter-coats", PageContext{URL: "/search/winter-coats", Type: PageSearch, Topic: "winter coats"}},
		{"/product/trail-runner-2", PageContext{URL: "/product/trail-runner-2", Type: PageProduct, Topic: "trail runner 2"}},
		{"/collections/shoes/products/air-max", PageContext{URL: "/collections/shoes/products/air-max", Type: PageProduct, Topic: "air max"}},
		{"/shop/wool-socks", PageContext{URL: "/shop/wool-socks", Type: PageProduct, Topic: "wool socks"}},
		{"/p/123", PageContext{URL: "/p/123", Type: PageProduct, Topic: "123"}},
		{"/shop", PageContext{URL: "/shop", Type: PageCategory, Topic: "shop"}},
		{"/product-category/outdoor-gear/", PageContext{URL: "/product-category/outdoor-gear/", Type: PageCategory, Topic: "outdoor gear"}},
		{"/tag/golang", PageContext{URL: "/tag/golang", Type: PageCategory, Topic: "golang"}},
		{"/2026/01/hello_world.html", PageContext{URL: "/2026/01/hello_world.html", Type: PageArticle, Topic: "hello world"}},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.target)
		require.NoError(t, err)
		require.Equal(t, tc.want, Classify(u), tc.target)
	}
}
