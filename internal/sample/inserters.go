package sample

import (
	"github.com/rushairer/batchinsert"
)

// PersonMapping Person 表映射；PersonId 由数据库生成
func PersonMapping(driver batchinsert.SQLDriver) *batchinsert.Mapping[*Person] {
	return batchinsert.NewMapping[*Person](PersonTable).
		MustAddGeneratedColumn("PersonId", IDType(driver)).
		MustAddColumn("Name", func(p *Person) any { return p.Name }).
		MustAddColumn("DateOfBirth", func(p *Person) any {
			if p.DateOfBirth == nil {
				return nil
			}
			return *p.DateOfBirth
		}).
		MustAddColumn("AreaCode", func(p *Person) any { return p.Phone.AreaCode }).
		MustAddColumn("Number", func(p *Person) any { return p.Phone.Number }).
		MustAddColumn("FullPhoneNumber", func(p *Person) any { return p.Phone.Full() }).
		MustAddColumn("HasKids", func(p *Person) any { return p.HasKids() }).
		MustAddColumn("SumOfKidsAge", func(p *Person) any { return p.SumOfKidsAge() })
}

// KidMapping Kid 表映射；KidId 由数据库生成
func KidMapping(driver batchinsert.SQLDriver) *batchinsert.Mapping[KidRow] {
	return batchinsert.NewMapping[KidRow](KidTable).
		MustAddGeneratedColumn("KidId", IDType(driver)).
		MustAddColumn("PersonId", func(r KidRow) any { return r.PersonID }).
		MustAddColumn("Age", func(r KidRow) any { return r.Kid.Age })
}

// NewPersonInserter 插入 Person 并回填 PersonID
func NewPersonInserter(driver batchinsert.SQLDriver) (*batchinsert.Inserter[*Person], error) {
	return batchinsert.NewInserter(PersonMapping(driver), driver, func(p *Person, values batchinsert.GeneratedValues) (*Person, error) {
		id, err := values.Int64("PersonId")
		if err != nil {
			return nil, err
		}
		p.PersonID = id
		return p, nil
	})
}

// NewKidInserter 插入 Kid 并回填 KidID
func NewKidInserter(driver batchinsert.SQLDriver) (*batchinsert.Inserter[KidRow], error) {
	return batchinsert.NewInserter(KidMapping(driver), driver, func(r KidRow, values batchinsert.GeneratedValues) (KidRow, error) {
		id, err := values.Int64("KidId")
		if err != nil {
			return r, err
		}
		r.Kid.KidID = id
		return r, nil
	})
}
