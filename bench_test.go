package atomic_value

import (
	"sync/atomic"
	"testing"
)

func BenchmarkCell(b *testing.B) {
	c, err := New(int64(0))
	if err != nil {
		b.Fatal(err)
	}
	std := new(atomic.Int64)

	b.Run("load/me", func(b *testing.B) {
		b.ReportAllocs()
		for i := 1; i <= b.N; i++ {
			_ = c.Load()
		}
	})
	b.Run("load/stdlib", func(b *testing.B) {
		b.ReportAllocs()
		for i := 1; i <= b.N; i++ {
			_ = std.Load()
		}
	})
	b.Run("update/me", func(b *testing.B) {
		b.ReportAllocs()
		for i := 1; i <= b.N; i++ {
			c.Update(func(v int64) int64 { return v + 1 })
		}
	})
	b.Run("add/stdlib", func(b *testing.B) {
		b.ReportAllocs()
		for i := 1; i <= b.N; i++ {
			std.Add(1)
		}
	})
}

func BenchmarkCellUpdateContended(b *testing.B) {
	c, err := New(uint64(0))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Update(func(v uint64) uint64 { return v + 1 })
		}
	})
}

func BenchmarkF64Add(b *testing.B) {
	var f F64
	b.Run("serial", func(b *testing.B) {
		b.ReportAllocs()
		for i := 1; i <= b.N; i++ {
			f.Add(0.001)
		}
	})
	b.Run("contended", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				f.Add(0.001)
			}
		})
	})
}

func BenchmarkRefUpdate(b *testing.B) {
	r := NewRef(wide{Name: "bench"})
	b.ReportAllocs()
	for i := 1; i <= b.N; i++ {
		r.Update(func(v wide) wide {
			v.Hits++
			return v
		})
	}
}
