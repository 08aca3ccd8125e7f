// Package gateway intercepts page requests from known AI crawlers and
// negotiates what they actually want before they scrape HTML.
//
// Every request lands in one of three modes:
//
//   - Bypass: not a crawler, not a page (assets, non-GET, the protocol's own
//     endpoints). The gateway emits nothing and normal serving continues.
//   - Direct: the crawler sent intent signals (X-OpenFeeder-Intent and
//     friends, or intent/depth/format/query parameters). It gets a tailored
//     answer immediately and no session is created.
//   - ColdStart: no signals. The crawler gets a few questions about the page
//     plus a single-use session id to answer them with.
//
// Answers come back through Respond, which consumes the session (read and
// delete) and returns the same tailored shape as Direct.
package gateway
