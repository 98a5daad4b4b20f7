// Package sample holds the Person/Kid model used by insertbench and the integration tests.
package sample

import (
	"math/rand/v2"
	"time"

	"github.com/Pallinder/go-randomdata"
)

// PhoneNumber 电话号码，入库时拆成区号、号码和完整号码三列
type PhoneNumber struct {
	AreaCode string
	Number   string
}

// Full 完整号码
func (p PhoneNumber) Full() string {
	if p.AreaCode == "" {
		return p.Number
	}
	return "(" + p.AreaCode + ") " + p.Number
}

// Kid 子表记录
type Kid struct {
	KidID int64
	Age   int
}

// Person 主表记录；PersonID 由数据库生成
type Person struct {
	PersonID    int64
	Name        string
	DateOfBirth *time.Time
	Phone       PhoneNumber
	Kids        []*Kid
}

// HasKids 是否有孩子
func (p *Person) HasKids() bool { return len(p.Kids) > 0 }

// SumOfKidsAge 孩子年龄之和
func (p *Person) SumOfKidsAge() int {
	sum := 0
	for _, k := range p.Kids {
		sum += k.Age
	}
	return sum
}

// KidRow 插入 Kid 表时的一行：孩子加上父亲的生成 id
type KidRow struct {
	PersonID int64
	Kid      *Kid
}

// KidRows 展开所有人的孩子；PersonID 必须已经回填
func KidRows(people []*Person) []KidRow {
	var rows []KidRow
	for _, p := range people {
		for _, k := range p.Kids {
			rows = append(rows, KidRow{PersonID: p.PersonID, Kid: k})
		}
	}
	return rows
}

// NewPeople 生成 n 个随机的人，每人 0..maxKids 个孩子；约一成没有生日
func NewPeople(n, maxKids int, rng *rand.Rand) []*Person {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	people := make([]*Person, n)
	for i := range people {
		p := &Person{
			Name: randomdata.FullName(randomdata.RandomGender),
			Phone: PhoneNumber{
				AreaCode: randomdata.StringNumberExt(1, "", 3),
				Number:   randomdata.StringNumberExt(2, "-", 4),
			},
		}
		if rng.IntN(10) > 0 {
			dob := time.Date(1950+rng.IntN(50), time.Month(1+rng.IntN(12)), 1+rng.IntN(28), 0, 0, 0, 0, time.UTC)
			p.DateOfBirth = &dob
		}
		if maxKids > 0 {
			for k := rng.IntN(maxKids + 1); k > 0; k-- {
				p.Kids = append(p.Kids, &Kid{Age: rng.IntN(18)})
			}
		}
		people[i] = p
	}
	return people
}
