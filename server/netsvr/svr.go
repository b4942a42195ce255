package netsvr

import (
	"net/http"

	"github.com/zintix-labs/minelab/server/app"
)

// NetSvr 可啟停的根路由，交給 app.App 管生命週期；Handler 給 httptest 掛載。
//
// handler 註冊只需要 NetRouter。
type NetSvr interface {
	NetRouter
	app.Component
	Handler() http.Handler
}

// NetRouter 只有註冊行為；minelab 的 API 只用 GET / POST。
type NetRouter interface {
	Use(mw func(http.Handler) http.Handler)
	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Mount(pattern string, h http.Handler)

	// Group 子路徑；With 同一路徑下加掛 middleware（例如 Bearer）
	Group(path string, fn func(NetRouter))
	With(mws ...func(http.Handler) http.Handler) NetRouter
}
