// Package useragent recognizes the browser and operating system behind a
// User-Agent header, enough to name a device for a person ("Chrome on macOS").
//
// registry.Server uses it to label devices that register without a label.
// Detection is keyword based and favors browsers that support Web Push;
// unrecognized agents yield an empty Label.
package useragent
