package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type getMapRequest struct {
	Route string `json:"route"`
	Date  string `json:"date"`
}

type getMapResponse struct {
	AM          periodData `json:"am_map_data"`
	PM          periodData `json:"pm_map_data"`
	DVILink     string     `json:"dvi_link"`
	DriverName  string     `json:"driver_name"`
	DriverPhone string     `json:"driver_phone"`
	Error       string     `json:"error"`
}

type periodData struct {
	VehicleNumber looseString     `json:"vehicle_number"`
	DeviceID      looseString     `json:"device_id"`
	Trace         json.RawMessage `json:"trace"`
	Stops         []stopData      `json:"stops"`
}

type stopData struct {
	Lat      *float64    `json:"lat"`
	Lon      *float64    `json:"lon"`
	Type     string      `json:"type"`
	Sequence looseInt    `json:"sequence"`
	Info     looseString `json:"info"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// looseString accepts strings, numbers and null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(b)
	return nil
}

// looseInt accepts integers, integral floats, numeric strings and null.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseInt(f)
	return nil
}
