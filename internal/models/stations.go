package models

import (
	"errors"
	"fmt"
)

var ErrUnknownStation = errors.New("unknown station")

type Station struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Stations is the fixed set of monitoring sites in the Beijing multi-site
// dataset, sorted by name.
var Stations = []Station{
	{Name: "Aotizhongxin", Latitude: 39.982, Longitude: 116.397},
	{Name: "Changping", Latitude: 40.217, Longitude: 116.23},
	{Name: "Dingling", Latitude: 40.292, Longitude: 116.22},
	{Name: "Dongsi", Latitude: 39.929, Longitude: 116.417},
	{Name: "Guanyuan", Latitude: 39.929, Longitude: 116.339},
	{Name: "Gucheng", Latitude: 39.914, Longitude: 116.184},
	{Name: "Huairou", Latitude: 40.328, Longitude: 116.628},
	{Name: "Nongzhanguan", Latitude: 39.937, Longitude: 116.461},
	{Name: "Shunyi", Latitude: 40.127, Longitude: 116.655},
	{Name: "Tiantan", Latitude: 39.886, Longitude: 116.407},
	{Name: "Wanliu", Latitude: 39.987, Longitude: 116.287},
	{Name: "Wanshouxigong", Latitude: 39.878, Longitude: 116.352},
}

// DefaultWeekdayStation is the station the weekday view reports on.
const DefaultWeekdayStation = "Dongsi"

var stationIndex = func() map[string]Station {
	m := make(map[string]Station, len(Stations))
	for _, st := range Stations {
		m[st.Name] = st
	}
	return m
}()

func LookupStation(name string) (Station, error) {
	st, ok := stationIndex[name]
	if !ok {
		return Station{}, fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	return st, nil
}
