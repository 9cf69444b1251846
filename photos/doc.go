// Package photos finds pictures of a place on Wikimedia Commons.
//
// Files are looked up with a geosearch around the place; titles that mention the place
// name are listed first, the rest keep the geosearch (nearest first) order.
package photos
