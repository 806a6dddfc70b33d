package geometry

import (
	"os"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// This file hand-maintains the MarshalMsg/UnmarshalMsg pair msgp's code
// generator would otherwise produce for Task, Volume, and Plan, so the
// plan sidecar can round-trip through the msgp binary wire format without
// a generate step in this build.

// MarshalMsg appends the MessagePack encoding of t to b.
func (t *Task) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 6)
	o = msgp.AppendString(o, "subvolume_id")
	o = msgp.AppendInt(o, t.SubvolumeID)
	o = msgp.AppendString(o, "z_start")
	o = msgp.AppendInt(o, t.ZStart)
	o = msgp.AppendString(o, "z_end")
	o = msgp.AppendInt(o, t.ZEnd)
	o = msgp.AppendString(o, "device_id")
	o = msgp.AppendInt(o, t.DeviceID)
	o = msgp.AppendString(o, "proj_start")
	o = msgp.AppendInt(o, t.ProjStart)
	o = msgp.AppendString(o, "proj_end")
	o = msgp.AppendInt(o, t.ProjEnd)
	return o, nil
}

// UnmarshalMsg decodes a Task from the MessagePack encoding in bts,
// returning the remaining bytes.
func (t *Task) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field string
		field, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return o, err
		}
		switch field {
		case "subvolume_id":
			t.SubvolumeID, o, err = msgp.ReadIntBytes(o)
		case "z_start":
			t.ZStart, o, err = msgp.ReadIntBytes(o)
		case "z_end":
			t.ZEnd, o, err = msgp.ReadIntBytes(o)
		case "device_id":
			t.DeviceID, o, err = msgp.ReadIntBytes(o)
		case "proj_start":
			t.ProjStart, o, err = msgp.ReadIntBytes(o)
		case "proj_end":
			t.ProjEnd, o, err = msgp.ReadIntBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// Msgsize returns a conservative buffer size hint for MarshalMsg.
func (t *Task) Msgsize() int { return 96 }

// MarshalMsg appends the MessagePack encoding of v to b.
func (v *Volume) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 7)
	o = msgp.AppendString(o, "nx")
	o = msgp.AppendInt(o, v.NX)
	o = msgp.AppendString(o, "ny")
	o = msgp.AppendInt(o, v.NY)
	o = msgp.AppendString(o, "nz")
	o = msgp.AppendInt(o, v.NZ)
	o = msgp.AppendString(o, "voxel")
	o = msgp.AppendFloat64(o, v.Voxel)
	o = msgp.AppendString(o, "xmin")
	o = msgp.AppendFloat64(o, v.XMin)
	o = msgp.AppendString(o, "ymin")
	o = msgp.AppendFloat64(o, v.YMin)
	o = msgp.AppendString(o, "zmin")
	o = msgp.AppendFloat64(o, v.ZMin)
	return o, nil
}

// UnmarshalMsg decodes a Volume from the MessagePack encoding in bts,
// returning the remaining bytes.
func (v *Volume) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field string
		field, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return o, err
		}
		switch field {
		case "nx":
			v.NX, o, err = msgp.ReadIntBytes(o)
		case "ny":
			v.NY, o, err = msgp.ReadIntBytes(o)
		case "nz":
			v.NZ, o, err = msgp.ReadIntBytes(o)
		case "voxel":
			v.Voxel, o, err = msgp.ReadFloat64Bytes(o)
		case "xmin":
			v.XMin, o, err = msgp.ReadFloat64Bytes(o)
		case "ymin":
			v.YMin, o, err = msgp.ReadFloat64Bytes(o)
		case "zmin":
			v.ZMin, o, err = msgp.ReadFloat64Bytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// Msgsize returns a conservative buffer size hint for MarshalMsg.
func (v *Volume) Msgsize() int { return 128 }

// MarshalMsg appends the MessagePack encoding of p to b.
func (p *Plan) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 3)
	o = msgp.AppendString(o, "run_id")
	o = msgp.AppendString(o, p.RunID)
	o = msgp.AppendString(o, "volume")
	var err error
	o, err = p.Volume.MarshalMsg(o)
	if err != nil {
		return o, err
	}
	o = msgp.AppendString(o, "tasks")
	o = msgp.AppendArrayHeader(o, uint32(len(p.Tasks)))
	for i := range p.Tasks {
		o, err = p.Tasks[i].MarshalMsg(o)
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// UnmarshalMsg decodes a Plan from the MessagePack encoding in bts,
// returning the remaining bytes.
func (p *Plan) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field string
		field, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return o, err
		}
		switch field {
		case "run_id":
			p.RunID, o, err = msgp.ReadStringBytes(o)
		case "volume":
			o, err = p.Volume.UnmarshalMsg(o)
		case "tasks":
			var n uint32
			n, o, err = msgp.ReadArrayHeaderBytes(o)
			if err != nil {
				return o, err
			}
			p.Tasks = make([]Task, n)
			for j := uint32(0); j < n; j++ {
				o, err = p.Tasks[j].UnmarshalMsg(o)
				if err != nil {
					return o, err
				}
			}
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// Msgsize returns a conservative buffer size hint for MarshalMsg.
func (p *Plan) Msgsize() int {
	t := Task{}
	return 64 + len(p.RunID) + p.Volume.Msgsize() + len(p.Tasks)*t.Msgsize()
}

// WritePlanSidecar persists plan to path as a MessagePack binary, for
// forensic inspection and for cross-checking against the run ledger.
func WritePlanSidecar(path string, plan Plan) error {
	data, err := plan.MarshalMsg(nil)
	if err != nil {
		return errors.Wrap(err, "geometry: marshaling plan sidecar")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "geometry: writing plan sidecar %q", path)
	}
	return nil
}

// ReadPlanSidecar loads a plan previously written by WritePlanSidecar.
func ReadPlanSidecar(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "geometry: reading plan sidecar %q", path)
	}
	var plan Plan
	if _, err := plan.UnmarshalMsg(raw); err != nil {
		return Plan{}, errors.Wrap(err, "geometry: decoding plan sidecar")
	}
	return plan, nil
}
